// Package logger はグローバルな zerolog のロガーを設定します。
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Init はログレベルと出力先を設定します。開発環境ではコンソール形式、それ以外は JSON で出力します。
// 最初の呼び出しだけが有効です。
func Init(appName, level string, development bool) {
	once.Do(func() {
		setup(os.Stdout, appName, level, development)
		log.Info().Str("level", zerolog.GlobalLevel().String()).Msg("Logger initialized")
	})
}

func setup(out io.Writer, appName, level string, development bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	var w io.Writer = out
	if development {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "02-01-2006 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
		}
	}

	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		parts := strings.Split(file, "/")
		return parts[len(parts)-1] + ":" + strconv.Itoa(line)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Str("app", appName).Logger()
}

// ParseLevel は LOG_LEVEL を zerolog のレベルに変換します。不明な値は info になります。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "DISABLED":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
