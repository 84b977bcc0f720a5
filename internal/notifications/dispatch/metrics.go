package dispatch

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"hubrelay/internal/types"
)

// Metrics records relay outcomes. Implementations must not fail the caller.
type Metrics interface {
	RecordDispatch(ctx context.Context, source types.DispatchSource, result string, latency time.Duration)
	RecordPollItems(ctx context.Context, n int)
}

// CloudWatchClient is the PutMetricData slice of the CloudWatch SDK.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var (
	_ Metrics = (*CloudWatchMetrics)(nil)
	_ Metrics = NoopMetrics{}
)

// CloudWatchMetrics publishes:
//   - DispatchAttempt {Source, Result}: count per dispatch
//   - DispatchLatency {Source}: milliseconds per dispatch
//   - PollNewSubmissions: new items found by a poll pass
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NewSlogAdapter(nil)
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, source types.DispatchSource, result string, latency time.Duration) {
	src := cwtypes.Dimension{Name: aws.String(types.DimSource), Value: aws.String(string(source))}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDispatchAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					src,
					{Name: aws.String(types.DimResult), Value: aws.String(result)},
				},
			},
			{
				MetricName: aws.String(types.MetricDispatchLatency),
				Value:      aws.Float64(float64(latency.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{src},
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record dispatch metric", "error", err.Error(), "source", string(source), "result", result)
	}
}

func (m *CloudWatchMetrics) RecordPollItems(ctx context.Context, n int) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(types.MetricPollNewItems),
			Value:      aws.Float64(float64(n)),
			Unit:       cwtypes.StandardUnitCount,
		}},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record poll metric", "error", err.Error(), "count", n)
	}
}

// NoopMetrics discards everything. Used when METRICS_ENABLED is false.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, types.DispatchSource, string, time.Duration) {}
func (NoopMetrics) RecordPollItems(context.Context, int)                                         {}
