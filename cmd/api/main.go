package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/z-wentao/castscribe/pkg/config"
	"github.com/z-wentao/castscribe/pkg/core"
	"github.com/z-wentao/castscribe/pkg/models"
	"github.com/z-wentao/castscribe/pkg/postprocess"
	"github.com/z-wentao/castscribe/pkg/transcriber"
)

// App 应用上下文（面试亮点：依赖注入）
type App struct {
	config    *config.Config
	scheduler *core.Scheduler
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	log.Println("✓ 配置加载成功")

	provider := transcriber.NewWhisperProvider(cfg.OpenAI.APIKey)

	var corrector *postprocess.Corrector
	if cfg.Transcriber.EnableCorrection {
		corrector = postprocess.NewCorrector(cfg.OpenAI.APIKey)
		log.Println("✓ 拼写/语法校正已启用")
	}

	app := &App{
		config:    cfg,
		scheduler: core.NewScheduler(cfg, provider, corrector),
	}
	log.Println("✓ 调度器已启动")

	router := app.setupRouter()
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 CastScribe 服务器启动在 http://localhost:%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")
	app.scheduler.Stop()
	log.Println("✓ 服务器已关闭")
}

// setupRouter 设置路由，对照 SPEC_FULL.md §6.5 的 HTTP 前门
func (app *App) setupRouter() *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = app.config.Server.MaxUploadSize

	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.GET("/jobs", app.handleListActiveJobs)
		api.POST("/jobs/upload", app.handleUpload)
		api.POST("/jobs/from-url", app.handleFromURL)
		api.GET("/jobs/:job_id", app.handleGetJob)
		api.GET("/jobs/:job_id/logs", app.handlePollLogs)
		api.DELETE("/jobs/:job_id", app.handleCancel)
	}

	return r
}

// handlePing 健康检查
func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// uploadForm 承载 multipart 表单里除了文件之外的参数
type uploadForm struct {
	Title                    string `form:"title"`
	OutputFormats            string `form:"output_formats"` // 逗号分隔，如 "txt,srt"
	ContentType              string `form:"content_type"`
	SourceLanguage           string `form:"source_language"`
	Keywords                 string `form:"keywords"`
	EnableSpeakerDiarization bool   `form:"enable_speaker_diarization"`
}

// handleUpload 处理文件上传提交：multipart `audio` 字段 + 表单参数
//
// 32 MiB 请求体上限和 multipart 解析都在这一层完成，核心包从不关心 HTTP。
func (app *App) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, app.config.Server.MaxUploadSize)

	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请上传 audio 字段"})
		return
	}
	if file.Size > app.config.Server.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "文件超过上传大小上限",
			"limit": app.config.Server.MaxUploadSize,
			"size":  file.Size,
		})
		return
	}

	var form uploadForm
	_ = c.ShouldBind(&form)

	opened, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}

	title := form.Title
	if title == "" {
		title = file.Filename
	}

	job, err := app.scheduler.SubmitFromBytes(title, data, paramsFromForm(form))
	if err != nil {
		writePipelineError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.JobID, "status": job.Status})
}

// fromURLRequest 是 JSON 提交的请求体
type fromURLRequest struct {
	Title                    string   `json:"title"`
	URL                      string   `json:"url" binding:"required"`
	OutputFormats            []string `json:"output_formats"`
	ContentType              string   `json:"content_type"`
	SourceLanguage           string   `json:"source_language"`
	Keywords                 string   `json:"keywords"`
	EnableSpeakerDiarization bool     `json:"enable_speaker_diarization"`
}

// handleFromURL 处理按 URL 提交的任务
func (app *App) handleFromURL(c *gin.Context) {
	var req fromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	title := req.Title
	if title == "" {
		title = req.URL
	}

	params := models.SubmitParams{
		OutputFormats:            req.OutputFormats,
		ContentType:              models.ContentType(req.ContentType),
		SourceLanguage:           req.SourceLanguage,
		Keywords:                 req.Keywords,
		EnableSpeakerDiarization: req.EnableSpeakerDiarization,
	}

	job, err := app.scheduler.SubmitFromUrl(title, req.URL, params)
	if err != nil {
		writePipelineError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.JobID, "status": job.Status})
}

// handleListActiveJobs 返回所有尚未进入终态的任务，供一个简易总览面板轮询
func (app *App) handleListActiveJobs(c *gin.Context) {
	jobs, err := app.scheduler.ActiveJobs()
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// handleGetJob 返回任务当前状态/结果快照（非阻塞）
func (app *App) handleGetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	job, err := app.scheduler.GetJob(jobID)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// handlePollLogs 非阻塞返回当前日志窗口
func (app *App) handlePollLogs(c *gin.Context) {
	jobID := c.Param("job_id")
	c.JSON(http.StatusOK, gin.H{"logs": app.scheduler.PollLogs(jobID)})
}

// handleCancel 触发任务取消
func (app *App) handleCancel(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := app.scheduler.Cancel(jobID); err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancel_requested"})
}

func paramsFromForm(f uploadForm) models.SubmitParams {
	return models.SubmitParams{
		OutputFormats:            splitCSV(f.OutputFormats),
		ContentType:              models.ContentType(f.ContentType),
		SourceLanguage:           f.SourceLanguage,
		Keywords:                 f.Keywords,
		EnableSpeakerDiarization: f.EnableSpeakerDiarization,
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func writePipelineError(c *gin.Context, err error) {
	pe, ok := err.(*models.PipelineError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch pe.Class {
	case models.ErrInvalidInput:
		status = http.StatusBadRequest
	case models.ErrServiceBusy:
		status = http.StatusServiceUnavailable
	case models.ErrProviderAuthFailed, models.ErrProviderRequestInvalid:
		status = http.StatusBadGateway
	case models.ErrProviderQuotaExhausted, models.ErrProviderRateLimited:
		status = http.StatusTooManyRequests
	}

	c.JSON(status, gin.H{
		"class":       pe.Class,
		"message":     pe.Message,
		"suggestions": pe.Suggestions,
	})
}
