package transcriber

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/z-wentao/castscribe/pkg/models"
)

// indexedProvider returns a transcript whose text encodes which file was read,
// so tests can verify index-ordered results regardless of completion order.
type indexedProvider struct {
	failFilenames map[string]bool
}

func (p *indexedProvider) Name() string { return "fake" }

func (p *indexedProvider) Transcribe(ctx context.Context, audio io.Reader, filename string, opts TranscribeOptions) (models.RawTranscript, error) {
	base := filepath.Base(filename)
	if p.failFilenames[base] {
		return models.RawTranscript{}, &ProviderError{Class: ClassQuotaExhausted, Err: errors.New("no quota")}
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return models.RawTranscript{}, err
	}
	return models.RawTranscript{Text: string(data)}, nil
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture file: %v", err)
	}
	return path
}

func TestTranscribePlanSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "single.mp3", "hello single file")

	plan := models.NewSinglePlan(models.AudioArtifact{Path: path})
	engine := NewEngine(&indexedProvider{}, 2)

	outcomes, err := engine.TranscribePlan(context.Background(), plan, TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Raw.Text != "hello single file" {
		t.Fatalf("unexpected transcript text: %q", outcomes[0].Raw.Text)
	}
}

func TestTranscribePlanSegmentedPreservesIndexOrder(t *testing.T) {
	dir := t.TempDir()
	var segments []models.AudioArtifact
	for i := 0; i < 6; i++ {
		name := filepath.Base(writeTempFile(t, dir, filepathSegmentName(i), filepathSegmentName(i)))
		segments = append(segments, models.AudioArtifact{Path: filepath.Join(dir, name)})
	}

	plan := models.NewSegmentedPlan(segments, 300)
	engine := NewEngine(&indexedProvider{}, 3)

	outcomes, err := engine.TranscribePlan(context.Background(), plan, TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 6 {
		t.Fatalf("expected 6 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Index != i {
			t.Fatalf("outcome at position %d has Index=%d, results must be index-ordered", i, o.Index)
		}
		if o.Raw.Text != filepathSegmentName(i) {
			t.Fatalf("outcome %d content mismatch: got %q want %q", i, o.Raw.Text, filepathSegmentName(i))
		}
	}
}

func TestTranscribePlanSegmentedSkipsFailedSegmentWithoutAbortingOthers(t *testing.T) {
	dir := t.TempDir()
	var segments []models.AudioArtifact
	for i := 0; i < 3; i++ {
		name := filepathSegmentName(i)
		writeTempFile(t, dir, name, name)
		segments = append(segments, models.AudioArtifact{Path: filepath.Join(dir, name)})
	}

	plan := models.NewSegmentedPlan(segments, 300)
	failing := filepathSegmentName(1)
	engine := NewEngine(&indexedProvider{failFilenames: map[string]bool{failing: true}}, 2)

	outcomes, err := engine.TranscribePlan(context.Background(), plan, TranscribeOptions{})
	if err != nil {
		t.Fatalf("plan-level error should not be returned for a single segment failure: %v", err)
	}
	if outcomes[1].Err == nil {
		t.Fatalf("expected outcome 1 to carry an error")
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("surviving segments should not carry errors: %v / %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[0].Raw.Text != filepathSegmentName(0) || outcomes[2].Raw.Text != filepathSegmentName(2) {
		t.Fatalf("surviving segment content mismatch: %+v", outcomes)
	}
}

func filepathSegmentName(i int) string {
	return "segment-" + string(rune('a'+i)) + ".mp3"
}
