// Package validator 校验音频文件的扩展名和魔数签名。
package validator

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/z-wentao/castscribe/pkg/models"
)

// acceptedExts 服务商能够接受的扩展名集合
var acceptedExts = map[string]bool{
	".flac": true, ".m4a": true, ".mp3": true, ".mp4": true,
	".mpeg": true, ".mpga": true, ".oga": true, ".ogg": true,
	".wav": true, ".webm": true,
}

// signatures 已知容器格式的魔数前缀
var signatures = []struct {
	name   string
	match  func(head []byte) bool
}{
	{"mp3-id3", func(h []byte) bool { return bytes.HasPrefix(h, []byte("ID3")) }},
	{"mp3-sync", func(h []byte) bool {
		return len(h) >= 2 && h[0] == 0xFF && (h[1] == 0xFB || h[1] == 0xF3 || h[1] == 0xF2)
	}},
	{"wav", func(h []byte) bool {
		return len(h) >= 12 && bytes.HasPrefix(h, []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WAVE"))
	}},
	{"mp4-ftyp", func(h []byte) bool { return bytes.Contains(h, []byte("ftyp")) }},
	{"ogg", func(h []byte) bool { return bytes.HasPrefix(h, []byte("OggS")) }},
	{"flac", func(h []byte) bool { return bytes.HasPrefix(h, []byte("fLaC")) }},
}

// IsAcceptedExt 判断扩展名是否在支持列表内
func IsAcceptedExt(ext string) bool {
	return acceptedExts[strings.ToLower(ext)]
}

// Result 校验结果，Warning 非空表示签名未识别但扩展名合法，放行但带警告
type Result struct {
	Warning string
}

// Validate 根据扩展名和文件头字节校验音频文件
func Validate(ext string, data []byte) (Result, error) {
	ext = strings.ToLower(ext)
	if !IsAcceptedExt(ext) {
		return Result{}, models.NewPipelineError("validate", models.ErrInvalidInput,
			fmt.Sprintf("不支持的文件格式: %s", ext), nil)
	}

	if len(data) == 0 {
		return Result{}, models.NewPipelineError("validate", models.ErrInvalidInput, "文件为空", nil)
	}
	if len(data) < 1000 {
		return Result{}, models.NewPipelineError("validate", models.ErrInvalidInput, "文件过小，可能已截断", nil)
	}

	head := data
	if len(head) > 12 {
		head = head[:12]
	}

	for _, sig := range signatures {
		if sig.match(head) {
			return Result{}, nil
		}
	}

	return Result{Warning: "未识别文件签名，依据扩展名放行"}, nil
}

// DetectExt 优先信任调用方提供的文件名/URL 里的扩展名（需在支持列表内），
// 拿不到或不认识时回退到用魔数签名猜测格式
func DetectExt(hint string, data []byte) (string, bool) {
	if hint != "" {
		if i := strings.IndexAny(hint, "?#"); i >= 0 {
			hint = hint[:i]
		}
		ext := strings.ToLower(filepath.Ext(hint))
		if IsAcceptedExt(ext) {
			return ext, true
		}
	}
	return sniffExt(data)
}

// sniffExt 根据魔数签名猜出一个规范扩展名
func sniffExt(data []byte) (string, bool) {
	head := data
	if len(head) > 12 {
		head = head[:12]
	}
	for _, sig := range signatures {
		if !sig.match(head) {
			continue
		}
		switch sig.name {
		case "mp3-id3", "mp3-sync":
			return ".mp3", true
		case "wav":
			return ".wav", true
		case "mp4-ftyp":
			return ".m4a", true
		case "ogg":
			return ".ogg", true
		case "flac":
			return ".flac", true
		}
	}
	return "", false
}
