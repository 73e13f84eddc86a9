package renderer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/z-wentao/castscribe/pkg/models"
)

// TestRenderTXTSingleFile mirrors spec scenario 1: small single MP3, 3 segments.
func TestRenderTXTSingleFile(t *testing.T) {
	transcript := models.MergedTranscript{
		TotalSegments: 1,
		Segments: []models.Segment{
			{Start: 0, End: 2, Text: "hello"},
			{Start: 2, End: 5, Text: "world"},
			{Start: 5, End: 7, Text: "bye"},
		},
	}

	want := "[00:00 - 00:02] hello\n\n[00:02 - 00:05] world\n\n[00:05 - 00:07] bye"
	got := RenderTXT(transcript)
	if got != want {
		t.Fatalf("TXT mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRenderTXTFallsBackToRawTextWithoutSegments(t *testing.T) {
	transcript := models.MergedTranscript{Text: "raw fallback text"}
	if got := RenderTXT(transcript); got != "raw fallback text" {
		t.Fatalf("expected raw text fallback, got %q", got)
	}
}

// TestRenderSRTSegmented mirrors spec scenario 2: 2 slices, one segment each,
// offset by the fixed 300s segment duration.
func TestRenderSRTSegmented(t *testing.T) {
	transcript := models.MergedTranscript{
		TotalSegments: 2,
		Segments: []models.Segment{
			{Start: 0, End: 10, Text: "A"},
			{Start: 300, End: 312, Text: "B"},
		},
	}

	want := "1\n00:00:00,000 --> 00:00:10,000\nA\n\n2\n00:05:00,000 --> 00:05:12,000\nB"
	got := RenderSRT(transcript)
	if got != want {
		t.Fatalf("SRT mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRenderVTTHeaderAndGrammar(t *testing.T) {
	transcript := models.MergedTranscript{
		Segments: []models.Segment{{Start: 1.5, End: 3.25, Text: "hi"}},
	}
	got := RenderVTT(transcript)
	if !strings.HasPrefix(got, "WEBVTT\n\n") {
		t.Fatalf("VTT must start with WEBVTT header, got %q", got)
	}
	if !strings.Contains(got, "00:00:01.500 --> 00:00:03.250") {
		t.Fatalf("VTT timestamp grammar wrong, got %q", got)
	}
	if strings.Contains(got, "=== ") {
		t.Fatalf("VTT must never carry the TXT-only segment divider")
	}
}

func TestRenderJSONShapeAndStableIDs(t *testing.T) {
	transcript := models.MergedTranscript{
		Text:          "hi",
		Language:      "en",
		DurationSec:   5,
		TotalSegments: 1,
		Segments:      []models.Segment{{Start: 0, End: 5, Text: "hi"}},
	}

	out, err := RenderJSON(transcript, "whisper-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["language"] != "en" {
		t.Fatalf("expected language=en, got %v", decoded["language"])
	}
	meta, ok := decoded["metadata"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected metadata object, got %T", decoded["metadata"])
	}
	if meta["model"] != "whisper-1" || meta["processed"] != true || meta["totalSegments"] != float64(1) {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	segments := decoded["segments"].([]interface{})
	seg0 := segments[0].(map[string]interface{})
	if seg0["id"] == "" || seg0["id"] == nil {
		t.Fatalf("expected a generated UUID for a segment without an ID")
	}
}

// TestRenderersAgreeOnSameSegmentSet covers the spec's invariant that SRT/VTT/JSON
// rendered from the same MergedTranscript reference the identical segment set.
func TestRenderersAgreeOnSameSegmentSet(t *testing.T) {
	transcript := models.MergedTranscript{
		TotalSegments: 2,
		Segments: []models.Segment{
			{Start: 0, End: 10, Text: "A"},
			{Start: 300, End: 312, Text: "B"},
		},
	}

	srt := RenderSRT(transcript)
	vtt := RenderVTT(transcript)
	jsonOut, err := RenderJSON(transcript, "whisper-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srtStarts := parseSRTStarts(t, srt)
	vttStarts := parseVTTStarts(t, vtt)

	var decoded struct {
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal([]byte(jsonOut), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(srtStarts) != len(transcript.Segments) || len(vttStarts) != len(transcript.Segments) || len(decoded.Segments) != len(transcript.Segments) {
		t.Fatalf("segment counts diverge across renderers: srt=%d vtt=%d json=%d want=%d",
			len(srtStarts), len(vttStarts), len(decoded.Segments), len(transcript.Segments))
	}
	for i, seg := range transcript.Segments {
		if srtStarts[i] != seg.Start || vttStarts[i] != seg.Start || decoded.Segments[i].Start != seg.Start {
			t.Fatalf("segment %d start diverges: srt=%v vtt=%v json=%v want=%v",
				i, srtStarts[i], vttStarts[i], decoded.Segments[i].Start, seg.Start)
		}
		if decoded.Segments[i].Text != seg.Text {
			t.Fatalf("segment %d text diverges in JSON: got %q want %q", i, decoded.Segments[i].Text, seg.Text)
		}
	}
}

func TestRenderIdempotence(t *testing.T) {
	transcript := models.MergedTranscript{
		TotalSegments: 1,
		Segments:      []models.Segment{{Start: 0, End: 2, Text: "hello"}},
	}

	first := RenderTXT(transcript)
	second := RenderTXT(transcript)
	if first != second {
		t.Fatalf("TXT rendering must be idempotent, got %q then %q", first, second)
	}

	firstSRT := RenderSRT(transcript)
	secondSRT := RenderSRT(transcript)
	if firstSRT != secondSRT {
		t.Fatalf("SRT rendering must be idempotent")
	}
}

func parseSRTStarts(t *testing.T, srt string) []float64 {
	t.Helper()
	var starts []float64
	for _, line := range strings.Split(srt, "\n") {
		if strings.Contains(line, " --> ") {
			ts := strings.SplitN(line, " --> ", 2)[0]
			starts = append(starts, parseSRTTimestamp(t, ts))
		}
	}
	return starts
}

func parseVTTStarts(t *testing.T, vtt string) []float64 {
	t.Helper()
	var starts []float64
	for _, line := range strings.Split(vtt, "\n") {
		if strings.Contains(line, " --> ") {
			ts := strings.SplitN(line, " --> ", 2)[0]
			starts = append(starts, parseVTTTimestamp(t, ts))
		}
	}
	return starts
}

func parseSRTTimestamp(t *testing.T, ts string) float64 {
	t.Helper()
	// hh:mm:ss,mmm
	parts := strings.SplitN(ts, ",", 2)
	hms := strings.Split(parts[0], ":")
	return hmsToSeconds(t, hms, parts[1])
}

func parseVTTTimestamp(t *testing.T, ts string) float64 {
	t.Helper()
	// hh:mm:ss.mmm
	idx := strings.LastIndex(ts, ".")
	hms := strings.Split(ts[:idx], ":")
	return hmsToSeconds(t, hms, ts[idx+1:])
}

func hmsToSeconds(t *testing.T, hms []string, ms string) float64 {
	t.Helper()
	if len(hms) != 3 {
		t.Fatalf("malformed timestamp parts: %v", hms)
	}
	var h, m, s, msec int
	mustAtoi(t, hms[0], &h)
	mustAtoi(t, hms[1], &m)
	mustAtoi(t, hms[2], &s)
	mustAtoi(t, ms, &msec)
	return float64(h*3600+m*60+s) + float64(msec)/1000
}

func mustAtoi(t *testing.T, s string, out *int) {
	t.Helper()
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit in timestamp component %q", s)
		}
		n = n*10 + int(c-'0')
	}
	*out = n
}

// TestRenderOneBadFormatDoesNotBlockTheOthers covers the batch-render invariant:
// an unknown format name must not abort formats requested alongside it.
func TestRenderOneBadFormatDoesNotBlockTheOthers(t *testing.T) {
	transcript := models.MergedTranscript{
		TotalSegments: 1,
		Segments:      []models.Segment{{Start: 0, End: 2, Text: "hello"}},
	}

	out, errs := Render(transcript, []string{"txt", "bogus", "vtt"}, "whisper-1", false)

	if _, ok := out["txt"]; !ok {
		t.Fatalf("expected txt to render despite the bogus format, got %+v", out)
	}
	if _, ok := out["vtt"]; !ok {
		t.Fatalf("expected vtt to render despite the bogus format, got %+v", out)
	}
	if _, ok := out["bogus"]; ok {
		t.Fatalf("did not expect output for an unknown format")
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one collected error, got %d: %+v", len(errs), errs)
	}
	if _, ok := errs["bogus"]; !ok {
		t.Fatalf("expected the error to be keyed by the failing format, got %+v", errs)
	}
}
