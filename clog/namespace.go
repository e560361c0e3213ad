package clog

import (
	"log/slog"
	"strings"
)

// NamespaceKey 日志中命名空间的字段名
const NamespaceKey = "namespace"

func namespaceField(parts []string) slog.Attr {
	return slog.String(NamespaceKey, strings.Join(parts, "."))
}
