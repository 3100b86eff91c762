package server

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局 SugaredLogger；InitLogger 之前为 Nop，测试无需初始化
var Log = zap.NewNop().Sugar()

// InitLogger 日志写入滚动文件，Warn 及以上同时输出到 stderr。
// filePath 为空时只写 stderr；level 为空按 debug 处理。
func InitLogger(filePath, level string) error {
	lvl := zapcore.DebugLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(level); err != nil {
			return err
		}
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	stderrLvl := zapcore.WarnLevel
	if filePath == "" {
		stderrLvl = lvl
	}
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), max(stderrLvl, lvl)),
	}
	if filePath != "" {
		// 10MB 一个文件，保留 3 个备份
		lj := &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), lvl))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	Log = logger.Sugar()
	return nil
}

// SyncLogger 刷新缓冲
func SyncLogger() {
	_ = Log.Sync()
}
