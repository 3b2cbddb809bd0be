package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"product-studio-server/modules/common/config"
)

// Logger - zerolog 별칭 (모듈들이 zerolog를 직접 import하지 않도록)
type Logger = zerolog.Logger

// New - 환경에 맞는 zerolog 로거 생성
// development: 콘솔 출력, 그 외: JSON. LOG_FILE이 있으면 lumberjack 로테이션 파일에도 기록
func New(cfg *config.Config) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stdout
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if cfg.LogFile != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, fileWriter)
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "product-studio-server").
		Logger()
}

// Component - 컴포넌트 태그가 붙은 하위 로거
func Component(base Logger, name string) Logger {
	return base.With().Str("component", name).Logger()
}

// Nop - 테스트용 무출력 로거
func Nop() Logger {
	return zerolog.Nop()
}
