package breaker

// 指标常量
const (
	// MetricRequestsTotal 通过熔断器执行的请求数 (Counter)
	MetricRequestsTotal = "breaker_requests_total"

	// MetricRejectsTotal 被熔断拒绝的请求数 (Counter)
	MetricRejectsTotal = "breaker_rejects_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	LabelKey       = "key"
	LabelFromState = "from_state"
	LabelToState   = "to_state"
	LabelResult    = "result"
)
