// Package fetcher 负责从 URL 下载音频字节，供 Preparer 后续处理。
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/z-wentao/castscribe/pkg/models"
)

const (
	minPayloadBytes = 1024
	readTimeout     = 120 * time.Second
	maxRedirects    = 5
	userAgent       = "Mozilla/5.0 (compatible; CastScribe/1.0; +https://example.invalid/bot)"
	progressEveryMB = 5 << 20
)

// Fetcher 通过 HTTP GET 下载音频，自动跟随跳转
type Fetcher struct {
	client *http.Client
}

// New 创建一个 Fetcher，httpClient 为 nil 时使用默认超时客户端
func New(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: readTimeout}
	}
	client := *httpClient
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		return nil
	}
	return &Fetcher{client: &client}
}

// Fetch 下载整份音频到内存；返回的字节数组交给后续阶段写入临时文件
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewPipelineError("fetch", models.ErrInvalidInput, "构造请求失败", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "audio/*, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		if err == context.Canceled || ctx.Err() == context.Canceled {
			return nil, models.NewPipelineError("fetch", models.ErrCancelled, "下载被取消", err)
		}
		return nil, models.NewPipelineError("fetch", models.ErrFetchFailed, "下载失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewPipelineError("fetch", models.ErrFetchFailed,
			fmt.Sprintf("服务器返回非 2xx 状态码: %d", resp.StatusCode), nil)
	}

	buf := make([]byte, 0, 1<<20)
	chunk := make([]byte, 32*1024)
	var total int64
	nextLog := int64(progressEveryMB)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			total += int64(n)
			if total >= nextLog {
				log.Printf("⬇️  下载进度: %.1f MB", float64(total)/(1<<20))
				nextLog += progressEveryMB
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, models.NewPipelineError("fetch", models.ErrFetchFailed, "读取响应体失败", rerr)
		}
	}

	if len(buf) < minPayloadBytes {
		return nil, models.NewPipelineError("fetch", models.ErrInvalidInput,
			fmt.Sprintf("下载内容过小（%d 字节），可能不是有效音频", len(buf)), nil)
	}

	log.Printf("✓ 下载完成: %.2f MB", float64(len(buf))/(1<<20))
	return buf, nil
}
