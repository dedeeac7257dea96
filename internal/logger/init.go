package logger

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志选项
type Options struct {
	// Console 是否输出到标准错误
	Console bool
	// File 非空时同时写入该文件并按大小轮转
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu      sync.Mutex
	rotator *lumberjack.Logger
)

// InitLogger 初始化日志器，可重复调用，之前打开的日志文件会被关闭
func InitLogger(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}

	var writers []io.Writer
	if opts.Console {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, rotator)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}
	log.Printf("Logger initialized")
}

// Close 关闭日志文件，之后的日志只输出到标准错误
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if rotator == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := rotator.Close()
	rotator = nil
	return err
}
