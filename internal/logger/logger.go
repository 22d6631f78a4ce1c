// Package logger — единый вывод логов pmu-freq (slog + tint) с учётом quiet.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Quiet при true отключает информационные сообщения (Info, Debug); Error выводится всегда.
var Quiet bool

var log = slog.New(tint.NewHandler(os.Stderr, nil))

// Init настраивает вывод: w — куда писать, debug — включить уровень Debug.
func Init(w io.Writer, quiet, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	Quiet = quiet
	log = slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
	slog.SetDefault(log)
}

// L возвращает текущий *slog.Logger для структурированных полей
func L() *slog.Logger { return log }

// Info выводит сообщение, если Quiet == false.
func Info(format string, args ...any) {
	if Quiet {
		return
	}
	log.Info(fmt.Sprintf(format, args...))
}

// Debug выводит отладочное сообщение
func Debug(format string, args ...any) {
	if Quiet {
		return
	}
	log.Debug(fmt.Sprintf(format, args...))
}

// Error выводит сообщение об ошибке всегда.
func Error(format string, args ...any) {
	log.Error(fmt.Sprintf(format, args...))
}
