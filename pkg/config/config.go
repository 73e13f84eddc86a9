package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config 应用配置
type Config struct {
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Queue       QueueConfig       `yaml:"queue"`
	Server      ServerConfig      `yaml:"server"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// TranscriberConfig 转换器配置
type TranscriberConfig struct {
	JobConcurrency     int `yaml:"job_concurrency"`     // 同时处理多少个任务
	SegmentConcurrency int `yaml:"segment_concurrency"` // 每个任务内并发转录的分段数
	SegmentDuration    int `yaml:"segment_duration"`    // 固定分片时长（秒）
	MaxRetries         int `yaml:"max_retries"`
	EnableCorrection   bool `yaml:"enable_correction"` // 是否开启 LLM 拼写/语法校正
}

// QueueConfig 队列配置，进程内队列，不支持跨进程 broker
type QueueConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port          int   `yaml:"port"`
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &config, nil
}

// Validate 验证配置，同时为未设置的字段填入默认值
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" || c.OpenAI.APIKey == "your-openai-api-key-here" {
		return fmt.Errorf("请在配置文件中设置有效的 OpenAI API Key")
	}

	if c.Transcriber.JobConcurrency <= 0 {
		c.Transcriber.JobConcurrency = 2
	}

	if c.Transcriber.SegmentConcurrency <= 0 {
		c.Transcriber.SegmentConcurrency = 3
	}

	if c.Transcriber.SegmentDuration <= 0 {
		c.Transcriber.SegmentDuration = 300
	}

	if c.Transcriber.MaxRetries <= 0 {
		c.Transcriber.MaxRetries = 3
	}

	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 32
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 32 << 20
	}

	return nil
}
