package preparer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/z-wentao/castscribe/pkg/models"
)

type fakeRunner struct {
	lookPathErr map[string]error
	run         func(ctx context.Context, name string, args ...string) (CommandResult, error)
}

func (f *fakeRunner) LookPath(name string) error {
	if f.lookPathErr == nil {
		return nil
	}
	return f.lookPathErr[name]
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	return f.run(ctx, name, args...)
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func signatureFor(ext string) []byte {
	switch ext {
	case ".mp3":
		return []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00")
	case ".wav":
		return append([]byte("RIFF\x24\x00\x00\x00"), []byte("WAVE")...)
	case ".m4a":
		return []byte("\x00\x00\x00\x18ftypM4A ")
	case ".ogg":
		return []byte("OggS\x00\x02\x00\x00")
	default:
		return []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00")
	}
}

func TestPrepareSmallFileSkipsTranscode(t *testing.T) {
	dir := t.TempDir()
	called := false
	p := &Preparer{
		runner: &fakeRunner{run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
			called = true
			return CommandResult{}, nil
		}},
		segmentDurationSec: 300,
	}

	original := models.AudioArtifact{Path: filepath.Join(dir, "orig.mp3"), SizeBytes: 1024, Ext: ".mp3"}
	plan, created, err := p.Prepare(context.Background(), original, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Kind != models.PlanSingle {
		t.Fatalf("expected single plan for small file, got %v", plan.Kind)
	}
	if len(created) != 0 {
		t.Fatalf("expected no artifacts created for a file under the limit")
	}
	if called {
		t.Fatalf("transcoding must not run for a file already under the provider limit")
	}
}

func TestTranscodeCascadeFallsBackToNextCodec(t *testing.T) {
	dir := t.TempDir()
	p := &Preparer{
		runner: &fakeRunner{run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
			codec := flagValue(args, "-c:a")
			out := args[len(args)-1]
			if codec == "libmp3lame" {
				return CommandResult{Stderr: "encoder not found"}, errors.New("exit 1")
			}
			// Next candidate in the cascade succeeds.
			if err := os.WriteFile(out, padTo(signatureFor(filepath.Ext(out)), 1200), 0o644); err != nil {
				t.Fatalf("fixture write failed: %v", err)
			}
			return CommandResult{}, nil
		}},
		segmentDurationSec: 300,
	}

	in := models.AudioArtifact{Path: filepath.Join(dir, "orig.wav"), SizeBytes: 1024}
	out, err := p.transcode(context.Background(), in, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Ext != ".mp3" {
		t.Fatalf("expected fallback to the second cascade entry (mp3), got %s", out.Ext)
	}
}

func TestTranscodeAllCodecsFail(t *testing.T) {
	dir := t.TempDir()
	p := &Preparer{
		runner: &fakeRunner{run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
			return CommandResult{Stderr: "nope"}, errors.New("exit 1")
		}},
		segmentDurationSec: 300,
	}

	in := models.AudioArtifact{Path: filepath.Join(dir, "orig.wav")}
	_, err := p.transcode(context.Background(), in, dir)
	if err == nil {
		t.Fatalf("expected an error when every codec in the cascade fails")
	}
	var pe *models.PipelineError
	if !errors.As(err, &pe) || pe.Class != models.ErrPrepareFailed {
		t.Fatalf("expected ErrPrepareFailed, got %v", err)
	}
}

func TestTranscodeFfmpegUnavailable(t *testing.T) {
	dir := t.TempDir()
	p := &Preparer{
		runner: &fakeRunner{
			lookPathErr: map[string]error{"ffmpeg": errors.New("not found")},
			run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
				t.Fatalf("Run should not be called when ffmpeg is unavailable")
				return CommandResult{}, nil
			},
		},
		segmentDurationSec: 300,
	}

	_, err := p.transcode(context.Background(), models.AudioArtifact{Path: filepath.Join(dir, "a.wav")}, dir)
	if err == nil {
		t.Fatalf("expected an error when ffmpeg is missing from PATH")
	}
}

func TestSegmentProducesExpectedCount(t *testing.T) {
	dir := t.TempDir()
	const durationSec = 300
	const totalDuration = 650.0 // -> 650/300 + 1 = 3 expected segments

	p := &Preparer{
		runner: &fakeRunner{run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
			if name == "ffprobe" {
				return CommandResult{Stdout: strconv.FormatFloat(totalDuration, 'f', -1, 64)}, nil
			}
			// ffmpeg segment invocation: synthesize the 3 expected output files.
			segmentsDir := filepath.Join(dir, "segments")
			if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
				t.Fatalf("failed to create segments dir: %v", err)
			}
			for i := 0; i < 3; i++ {
				path := filepath.Join(segmentsDir, "segment_"+pad3(i)+".mp3")
				if err := os.WriteFile(path, []byte("chunk"), 0o644); err != nil {
					t.Fatalf("fixture write failed: %v", err)
				}
			}
			return CommandResult{}, nil
		}},
		segmentDurationSec: durationSec,
	}

	in := models.AudioArtifact{Path: filepath.Join(dir, "transcoded.mp3"), Ext: ".mp3"}
	segments, err := p.segment(context.Background(), in, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.Role != models.RoleSegment {
			t.Fatalf("segment %d has wrong role: %v", i, seg.Role)
		}
	}
}

func TestSegmentFfprobeUnavailable(t *testing.T) {
	dir := t.TempDir()
	p := &Preparer{
		runner: &fakeRunner{
			lookPathErr: map[string]error{"ffprobe": errors.New("not found")},
			run: func(ctx context.Context, name string, args ...string) (CommandResult, error) {
				t.Fatalf("Run should not be called when ffprobe is unavailable")
				return CommandResult{}, nil
			},
		},
		segmentDurationSec: 300,
	}

	_, err := p.segment(context.Background(), models.AudioArtifact{Path: filepath.Join(dir, "a.mp3"), Ext: ".mp3"}, dir)
	if err == nil {
		t.Fatalf("expected an error when ffprobe is missing from PATH")
	}
}

func pad3(i int) string {
	s := strconv.Itoa(i)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
