package types

// CloudWatch metric names and dimensions. All components MUST use these
// constants.
const (
	MetricDispatchAttempt = "DispatchAttempt"
	MetricDispatchLatency = "DispatchLatency"
	MetricPollNewItems    = "PollNewSubmissions"

	DimSource = "Source"
	DimResult = "Result"

	MetricNamespace = "HubRelay"
)

// DispatchSource identifies which relay path produced a notification.
type DispatchSource string

const (
	SourceWebhook DispatchSource = "webhook"
	SourcePoll    DispatchSource = "poll"
)

// Dispatch outcomes recorded under DimResult.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
