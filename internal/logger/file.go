package logger

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings used when the corresponding logging keys are unset.
const (
	DefaultLogFile    = "logs/mailjobs.log"
	DefaultMaxSizeMB  = 100
	DefaultMaxFiles   = 5
	DefaultMaxAgeDays = 30
)

// newFileWriter builds the rotating writer behind output "file". Rotated
// files are gzipped and named in local time, so a worker and an API server
// writing to the same directory rotate in step.
func newFileWriter(cfg Config) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		MaxAge:     cfg.MaxAgeDays,
		LocalTime:  true,
		Compress:   true,
	}
	if w.Filename == "" {
		w.Filename = DefaultLogFile
	}
	if w.MaxSize <= 0 {
		w.MaxSize = DefaultMaxSizeMB
	}
	if w.MaxBackups <= 0 {
		w.MaxBackups = DefaultMaxFiles
	}
	// A negative age keeps rotated files until MaxBackups evicts them.
	if w.MaxAge < 0 {
		w.MaxAge = 0
	} else if w.MaxAge == 0 {
		w.MaxAge = DefaultMaxAgeDays
	}
	return w
}
