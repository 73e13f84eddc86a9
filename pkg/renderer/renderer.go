// Package renderer 把一份 MergedTranscript 渲染成 TXT/SRT/VTT/JSON。
//
// 所有渲染函数都是纯函数：同样的输入产出同样的输出（JSON 的 metadata.timestamp
// 和缺省生成的 uuid 除外），不做任何文件 I/O。
package renderer

import (
	"fmt"

	"github.com/z-wentao/castscribe/pkg/models"
)

// Render 按请求的格式列表渲染转录结果，返回格式名到内容的映射。
//
// 某个格式渲染失败不会中止其它格式：失败的格式从返回的 map 中省略，对应的
// 错误记录在 errs 里交给调用方去写日志，而不是让整批渲染一起失败。
func Render(t models.MergedTranscript, formats []string, model string, processed bool) (map[string]string, map[string]error) {
	out := make(map[string]string, len(formats))
	var errs map[string]error

	fail := func(f string, err error) {
		if errs == nil {
			errs = make(map[string]error)
		}
		errs[f] = err
	}

	for _, f := range formats {
		switch f {
		case "txt":
			out["txt"] = RenderTXT(t)
		case "srt":
			out["srt"] = RenderSRT(t)
		case "vtt":
			out["vtt"] = RenderVTT(t)
		case "json":
			content, err := RenderJSON(t, model, processed)
			if err != nil {
				fail("json", models.NewPipelineError("render", models.ErrInternal, "生成 JSON 失败", err))
				continue
			}
			out["json"] = content
		default:
			fail(f, fmt.Errorf("unknown output format: %s", f))
		}
	}
	return out, errs
}
