package metrics

import "strconv"

// Label 指标维度；值应当低基数，不要放键名或节点 ID
type Label struct {
	Key   string
	Value string
}

// L 构造 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// 各组件共用的标签名
const (
	LabelOperation   = "operation"
	LabelOutcome     = "outcome"
	LabelStatusClass = "status_class"
	LabelBackend     = "backend"
	LabelReason      = "reason"
)

// LabelOutcome 的取值
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// HTTPStatusClass 返回 HTTP 状态类标签值：1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Outcome 将错误映射为结果标签
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
