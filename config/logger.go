package config

import (
	"fmt"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger = zap.NewNop()

// InitLogger initializes the Zap logger with Lumberjack log rotation and a 'logs' folder.
// Outside production the same entries are mirrored to stderr.
func InitLogger() {
	err := os.MkdirAll("logs", os.ModePerm)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logs directory: %v", err))
	}

	logFile := &lumberjack.Logger{
		Filename:   fmt.Sprintf("logs/%s.log", time.Now().Format("2006-01-02")),
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(logFile), zapcore.InfoLevel),
	}
	if !IsProduction() {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.DebugLevel))
	}

	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

