// Package preparer 决定一份音频是直接送往服务商，还是先转码/分片。
package preparer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z-wentao/castscribe/pkg/models"
	"github.com/z-wentao/castscribe/pkg/validator"
)

// codecCascade 按顺序尝试的转码方案，第一个在 PATH 上可用且执行成功的胜出
var codecCascade = []struct {
	codec string
	ext   string
}{
	{"libmp3lame", ".mp3"},
	{"mp3", ".mp3"},
	{"aac", ".m4a"},
	{"libvorbis", ".ogg"},
	{"pcm_s16le", ".wav"},
}

// Preparer 把一个原始 AudioArtifact 变成可以直接喂给服务商的 Plan
type Preparer struct {
	runner             commandRunner
	segmentDurationSec int
}

// New 创建 Preparer，segmentDurationSec<=0 时使用 models.SegmentDurationSec
func New(segmentDurationSec int) *Preparer {
	if segmentDurationSec <= 0 {
		segmentDurationSec = models.SegmentDurationSec
	}
	return &Preparer{runner: execRunner{}, segmentDurationSec: segmentDurationSec}
}

// Prepare 决定并执行转码/分片，返回最终的 Plan
//
// workDir 是调用方（custodian）提供的专属临时目录；Prepare 不负责清理。
func (p *Preparer) Prepare(ctx context.Context, original models.AudioArtifact, workDir string) (models.Plan, []models.AudioArtifact, error) {
	var created []models.AudioArtifact

	if original.SizeBytes <= models.ProviderLimitBytes {
		log.Printf("✓ 文件大小 %.2f MB 未超过服务商上限，无需转码", float64(original.SizeBytes)/(1<<20))
		return models.NewSinglePlan(original), created, nil
	}

	log.Printf("⚠️ 文件大小 %.2f MB 超过服务商上限 (25 MB)，开始转码", float64(original.SizeBytes)/(1<<20))

	transcoded, err := p.transcode(ctx, original, workDir)
	if err != nil {
		return models.Plan{}, created, err
	}
	created = append(created, transcoded)

	if transcoded.SizeBytes <= models.ProviderLimitBytes {
		log.Printf("✓ 转码后大小 %.2f MB，无需再分片", float64(transcoded.SizeBytes)/(1<<20))
		return models.NewSinglePlan(transcoded), created, nil
	}

	log.Printf("✂️  转码后仍超限 (%.2f MB)，开始按 %d 秒分片", float64(transcoded.SizeBytes)/(1<<20), p.segmentDurationSec)
	segments, err := p.segment(ctx, transcoded, workDir)
	if err != nil {
		return models.Plan{}, created, err
	}
	created = append(created, segments...)

	return models.NewSegmentedPlan(segments, p.segmentDurationSec), created, nil
}

// transcode 依次尝试编码器级联，第一个成功者胜出
func (p *Preparer) transcode(ctx context.Context, in models.AudioArtifact, workDir string) (models.AudioArtifact, error) {
	if err := p.runner.LookPath("ffmpeg"); err != nil {
		return models.AudioArtifact{}, unavailableErr(err)
	}

	var lastErr error
	for _, c := range codecCascade {
		out := filepath.Join(workDir, "transcoded"+c.ext)
		args := []string{
			"-y", "-i", in.Path,
			"-ac", "1", "-ar", "16000",
			"-c:a", c.codec, "-b:a", "48k",
			out,
		}
		res, err := p.runner.Run(ctx, "ffmpeg", args...)
		if err != nil {
			lastErr = fmt.Errorf("codec %s failed: %w (stderr: %s)", c.codec, err, res.Stderr)
			log.Printf("  ⚠️ 编码器 %s 不可用或失败，尝试下一个", c.codec)
			continue
		}

		info, statErr := os.Stat(out)
		if statErr != nil {
			lastErr = statErr
			continue
		}

		artifact := models.AudioArtifact{Path: out, SizeBytes: info.Size(), Ext: c.ext, Role: models.RoleTranscoded}
		if _, verr := validator.Validate(c.ext, mustRead(out)); verr != nil {
			lastErr = verr
			continue
		}
		log.Printf("✓ 转码成功，使用编码器 %s -> %s", c.codec, out)
		return artifact, nil
	}

	return models.AudioArtifact{}, models.NewPipelineError("prepare", models.ErrPrepareFailed,
		"所有编码器均不可用，请尝试手动压缩音频后重新上传", lastErr,
		"手动将音频压缩到 25MB 以内", "确认服务器已安装 ffmpeg 并包含所需编码器")
}

// segment 把一个已经在限制内的编码格式切成固定时长的分片
func (p *Preparer) segment(ctx context.Context, in models.AudioArtifact, workDir string) ([]models.AudioArtifact, error) {
	if err := p.runner.LookPath("ffprobe"); err != nil {
		return nil, unavailableErr(err)
	}

	duration, err := p.probeDuration(ctx, in.Path)
	if err != nil {
		return nil, models.NewPipelineError("prepare", models.ErrPrepareFailed, "获取音频时长失败", err)
	}

	segmentsDir := filepath.Join(workDir, "segments")
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return nil, models.NewPipelineError("prepare", models.ErrPrepareFailed, "创建分片目录失败", err)
	}

	pattern := filepath.Join(segmentsDir, "segment_%03d"+in.Ext)
	args := []string{
		"-y", "-i", in.Path,
		"-f", "segment",
		"-segment_time", strconv.Itoa(p.segmentDurationSec),
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	}
	if res, err := p.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return nil, models.NewPipelineError("prepare", models.ErrPrepareFailed,
			fmt.Sprintf("分片失败: %s", res.Stderr), err)
	}

	expected := int(duration)/p.segmentDurationSec + 1
	segments := make([]models.AudioArtifact, 0, expected)
	for i := 0; i < expected; i++ {
		path := filepath.Join(segmentsDir, fmt.Sprintf("segment_%03d%s", i, in.Ext))
		info, err := os.Stat(path)
		if err != nil {
			break
		}
		segments = append(segments, models.AudioArtifact{
			Path: path, SizeBytes: info.Size(), Ext: in.Ext, Role: models.RoleSegment,
		})
	}

	if len(segments) == 0 {
		return nil, models.NewPipelineError("prepare", models.ErrPrepareFailed, "分片结果为空", nil)
	}

	log.Printf("✓ 分片完成，共 %d 个片段", len(segments))
	return segments, nil
}

// probeDuration 用 ffprobe 读取音频总时长（秒）
func (p *Preparer) probeDuration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, res.Stderr)
	}
	s := strings.TrimSpace(res.Stdout)
	if s == "" {
		return 0, fmt.Errorf("ffprobe returned empty duration")
	}
	return strconv.ParseFloat(s, 64)
}

func unavailableErr(err error) error {
	return models.NewPipelineError("prepare", models.ErrPrepareFailed,
		"转码工具不可用 (ffmpeg/ffprobe 未安装或不在 PATH 中)", err,
		"请在服务器上安装 ffmpeg", "或手动压缩音频到 25MB 以内后重新上传")
}

func mustRead(path string) []byte {
	b, _ := os.ReadFile(path)
	return b
}
