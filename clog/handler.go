package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// handler 在 slog 的 JSON/Text Handler 外加上可调级别与文件同步
type handler struct {
	slog.Handler
	level *slog.LevelVar
	file  *os.File
}

func newHandler(config *Config, o *options) (*handler, error) {
	h := &handler{level: new(slog.LevelVar)}
	lvl, _ := ParseLevel(config.Level)
	h.level.Set(slog.Level(lvl))

	w := o.writer
	if w == nil {
		var err error
		if w, h.file, err = openOutput(config.Output); err != nil {
			return nil, err
		}
	}

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       h.level,
		ReplaceAttr: replaceAttr(config.SourceRoot),
	}
	if strings.EqualFold(config.Format, "json") {
		h.Handler = slog.NewJSONHandler(w, opts)
	} else {
		h.Handler = slog.NewTextHandler(w, opts)
	}
	return h, nil
}

// openOutput stdout、stderr 或追加写入的文件
func openOutput(output string) (io.Writer, *os.File, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, xerrors.Wrapf(err, "clog: open %s", output)
	}
	return f, f, nil
}

func (h *handler) flush() {
	if h.file != nil {
		_ = h.file.Sync()
	}
}

// replaceAttr 级别大写、时间带毫秒、source 改为 caller=相对路径:行号
func replaceAttr(sourceRoot string) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			if l, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(l.String())
			}
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok {
				return slog.String("caller", fmt.Sprintf("%s:%d", trimSourcePath(src.File, sourceRoot), src.Line))
			}
		}
		return a
	}
}

func trimSourcePath(file, root string) string {
	if root == "" {
		return file
	}
	if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	if i := strings.Index(file, root); i != -1 {
		return file[i:]
	}
	return file
}
