package common

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel 日志级别
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarn    LogLevel = "warn"
	LevelError   LogLevel = "error"
	LevelSuccess LogLevel = "success"
)

// LogEntry 一条面向 UI 的日志记录
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
	Details   string   `json:"details,omitempty"`
}

const maxLogEntries = 100

// Logger 环形日志缓冲：最多保留 100 条，最新的在前。
// 仅用于爬取过程的可视化，不做持久化；可选地同时写入滚动日志文件。
type Logger struct {
	mu        sync.Mutex
	entries   []LogEntry
	listeners []func([]LogEntry)
	std       *log.Logger
	nowFunc   func() time.Time
}

// NewLogger 创建内存日志器。file 非空时额外写入滚动文件
func NewLogger(file string) *Logger {
	var out io.Writer = log.Default().Writer()
	if file != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	return &Logger{
		std:     log.New(out, "", log.LstdFlags),
		nowFunc: time.Now,
	}
}

func (l *Logger) log(level LogLevel, message, details string) {
	l.mu.Lock()
	entry := LogEntry{
		Timestamp: l.nowFunc().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Details:   details,
	}
	// 最新日志放前面
	l.entries = append([]LogEntry{entry}, l.entries...)
	if len(l.entries) > maxLogEntries {
		l.entries = l.entries[:maxLogEntries]
	}
	snapshot := append([]LogEntry(nil), l.entries...)
	listeners := append(make([]func([]LogEntry), 0, len(l.listeners)), l.listeners...)
	l.mu.Unlock()

	prefix := ""
	if level == LevelSuccess {
		prefix = "✅ "
	}
	if details != "" {
		l.std.Printf("%s%s: %s (%s)", prefix, level, message, details)
	} else {
		l.std.Printf("%s%s: %s", prefix, level, message)
	}

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (l *Logger) Info(format string, args ...any)    { l.log(LevelInfo, fmt.Sprintf(format, args...), "") }
func (l *Logger) Warn(format string, args ...any)    { l.log(LevelWarn, fmt.Sprintf(format, args...), "") }
func (l *Logger) Error(format string, args ...any)   { l.log(LevelError, fmt.Sprintf(format, args...), "") }
func (l *Logger) Success(format string, args ...any) { l.log(LevelSuccess, fmt.Sprintf(format, args...), "") }

// ErrorWith 带详情的错误日志
func (l *Logger) ErrorWith(message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	l.log(LevelError, message, details)
}

// Logs 全部日志快照
func (l *Logger) Logs() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Recent 最近 n 条
func (l *Logger) Recent(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]LogEntry(nil), l.entries[:n]...)
}

// Subscribe 订阅日志变化，返回取消函数
func (l *Logger) Subscribe(fn func([]LogEntry)) func() {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	idx := len(l.listeners) - 1
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if idx < len(l.listeners) {
			l.listeners = append(l.listeners[:idx], l.listeners[idx+1:]...)
		}
	}
}

// Clear 清空缓冲
func (l *Logger) Clear() {
	l.mu.Lock()
	l.entries = nil
	listeners := append(make([]func([]LogEntry), 0, len(l.listeners)), l.listeners...)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(nil)
	}
}
