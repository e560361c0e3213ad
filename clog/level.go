package clog

import (
	"log/slog"
	"strings"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// Level 日志级别，数值与 slog.Level 一致
type Level slog.Level

const (
	DebugLevel = Level(slog.LevelDebug)
	InfoLevel  = Level(slog.LevelInfo)
	WarnLevel  = Level(slog.LevelWarn)
	ErrorLevel = Level(slog.LevelError)
)

var levelNames = map[string]Level{
	"debug": DebugLevel,
	"info":  InfoLevel,
	"warn":  WarnLevel,
	"error": ErrorLevel,
}

func (l Level) String() string {
	return strings.ToLower(slog.Level(l).String())
}

// ParseLevel 解析 debug|info|warn|error，不区分大小写
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return InfoLevel, xerrors.Wrapf(xerrors.ErrInvalidInput, "clog: unknown level %q", s)
}
