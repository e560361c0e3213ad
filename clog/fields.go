package clog

import (
	"log/slog"
	"time"
)

// Field 即 slog.Attr
type Field = slog.Attr

func String(k, v string) Field                 { return slog.String(k, v) }
func Int(k string, v int) Field                { return slog.Int(k, v) }
func Float64(k string, v float64) Field        { return slog.Float64(k, v) }
func Duration(k string, v time.Duration) Field { return slog.Duration(k, v) }
func Any(k string, v any) Field                { return slog.Any(k, v) }

// Error 只记录错误消息：err_msg="..."；err 为 nil 时字段被丢弃
func Error(err error) Field {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("err_msg", err.Error())
}

// ErrorWithCode 记录错误消息与 xerrors 错误码：error={msg=..., code=...}
//
//	logger.Warn("service discovery failed", clog.ErrorWithCode(err, xerrors.GetCode(err)))
func ErrorWithCode(err error, code string) Field {
	if err == nil {
		return slog.Group("error", slog.String("code", code))
	}
	return slog.Group("error",
		slog.String("msg", err.Error()),
		slog.String("code", code),
	)
}
