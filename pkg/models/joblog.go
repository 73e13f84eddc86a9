package models

import "time"

// LogLevel 日志等级
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarn    LogLevel = "warn"
	LogError   LogLevel = "error"
)

// JobLogEntry 任务日志中的一条记录
type JobLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Memory    string    `json:"memory,omitempty"`
}
