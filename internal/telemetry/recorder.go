// Package telemetry emits simulation metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"goldenbatch/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// DefaultBufferSize is used when RecorderConfig.BufferSize is not positive.
const DefaultBufferSize = 64

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Namespace  string
	Endpoint   string
	BufferSize int
	Logger     *slog.Logger
}

// Recorder turns published outcomes into CloudWatch metrics.
//
// Metrics emitted:
//   - SimulationAttempt: Dims {Endpoint} -- on every attempt
//   - SimulationResult: Dims {Result} -- once per run, pass/fail/failed
//   - SimulationLatency: Dims {Result} -- run duration in milliseconds
//
// Observe never blocks; outcomes that do not fit in the buffer are dropped.
type Recorder struct {
	client    CloudWatchClient
	namespace string
	endpoint  string
	logger    *slog.Logger
	events    chan types.Outcome
	dropped   atomic.Int64
}

// NewRecorder creates a Recorder. Call Run to start publishing.
func NewRecorder(client CloudWatchClient, cfg RecorderConfig) *Recorder {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		client:    client,
		namespace: namespace,
		endpoint:  cfg.Endpoint,
		logger:    logger,
		events:    make(chan types.Outcome, size),
	}
}

// Observe queues an outcome. It is safe to register as an orchestrator
// subscriber.
func (r *Recorder) Observe(o types.Outcome) {
	if o.State == types.StateIdle {
		return
	}
	select {
	case r.events <- o:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("telemetry buffer full, dropping outcome",
			"run_id", o.RunID,
			"state", string(o.State),
			"dropped_total", n,
		)
	}
}

// Dropped returns the number of outcomes discarded because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run publishes queued outcomes until ctx is done, then flushes what is
// already buffered.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case o := <-r.events:
			r.record(ctx, o)
		case <-ctx.Done():
			r.drain()
			return nil
		}
	}
}

func (r *Recorder) drain() {
	ctx := context.Background()
	for {
		select {
		case o := <-r.events:
			r.record(ctx, o)
		default:
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, o types.Outcome) {
	switch o.State {
	case types.StateAttempting:
		r.RecordAttempt(ctx)
	case types.StateSucceeded, types.StateFailed:
		result := resultOf(o)
		r.RecordResult(ctx, result)
		if d := o.Duration(); d > 0 {
			r.RecordLatency(ctx, result, d.Milliseconds())
		}
	}
}

// RecordAttempt emits a SimulationAttempt metric with the Endpoint dimension.
func (r *Recorder) RecordAttempt(ctx context.Context) {
	r.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSimulationAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimEndpoint),
				Value: aws.String(r.endpoint),
			},
		},
	})
}

// RecordResult emits a SimulationResult metric with the Result dimension.
func (r *Recorder) RecordResult(ctx context.Context, result string) {
	r.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSimulationResult),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimResult),
				Value: aws.String(result),
			},
		},
	})
}

// RecordLatency emits the run duration in milliseconds.
func (r *Recorder) RecordLatency(ctx context.Context, result string, ms int64) {
	r.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSimulationLatency),
		Value:      aws.Float64(float64(ms)),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimResult),
				Value: aws.String(result),
			},
		},
	})
}

func (r *Recorder) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}

func resultOf(o types.Outcome) string {
	if o.State == types.StateFailed {
		return types.ResultFailed
	}
	if o.Verdict == types.VerdictPass {
		return types.ResultPass
	}
	return types.ResultFail
}
