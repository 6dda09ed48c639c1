package pinot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"
	"reduction.dev/pinot/connectors"
	"reduction.dev/pinot/telemetry"
)

const (
	// defaultInitialBackoff is the starting duration for exponential backoff
	defaultInitialBackoff = 100 * time.Millisecond

	// maxBackoffDuration is the maximum duration for backoff
	maxBackoffDuration = 10 * time.Second
)

// Executor runs splits against a Pinot cluster by calling the broker or a
// segment server depending on the split kind.
type Executor struct {
	broker         BrokerClient
	segments       SegmentClient
	maxConcurrent  int
	retryLimit     int
	initialBackoff time.Duration
	logger         *slog.Logger
}

type ExecutorParams struct {
	Config        Config
	BrokerClient  BrokerClient
	SegmentClient SegmentClient

	// InitialBackoff overrides the first retry delay.
	InitialBackoff time.Duration
}

func NewExecutor(params ExecutorParams) *Executor {
	config := params.Config.WithDefaults()
	initialBackoff := params.InitialBackoff
	if initialBackoff == 0 {
		initialBackoff = defaultInitialBackoff
	}
	return &Executor{
		broker:         params.BrokerClient,
		segments:       params.SegmentClient,
		maxConcurrent:  config.MaxConcurrentSplits,
		retryLimit:     config.RetryLimit,
		initialBackoff: initialBackoff,
		logger:         slog.With("instanceID", "executor", "connectorId", config.ConnectorID),
	}
}

// Execute runs one split. Retryable remote errors are retried up to the
// configured retry limit.
func (e *Executor) Execute(ctx context.Context, split *Split) ([]byte, error) {
	if err := split.check(); err != nil {
		return nil, err
	}

	executionID := ksuid.New().String()
	logger := e.logger.With("executionID", executionID)
	kind := split.Kind().String()
	done := telemetry.StartSplitExecution(kind)

	var result []byte
	var err error
	for attempt := 0; ; attempt++ {
		if err := e.backoff(ctx, attempt); err != nil {
			done(err)
			return nil, err
		}

		call := &splitCall{ctx: ctx, executor: e}
		err = split.Visit(call)
		if err == nil {
			result = call.result
			break
		}
		if !connectors.IsRetryable(err) || attempt >= e.retryLimit {
			break
		}

		telemetry.RecordSplitRetry(kind)
		logger.Warn("retrying split", "split", split, "attempt", attempt+1, "error", err)
	}
	done(err)

	if err != nil {
		logger.Error("split execution failed", "split", split, "error", err)
		return nil, fmt.Errorf("execute %s split: %w", kind, err)
	}
	logger.Debug("split executed", "split", split, "bytes", len(result))
	return result, nil
}

// ExecuteAll runs splits concurrently and returns their results in input order.
// The first failure cancels the remaining executions.
func (e *Executor) ExecuteAll(ctx context.Context, splits []*Split) ([][]byte, error) {
	results := make([][]byte, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for i, split := range splits {
		g.Go(func() error {
			result, err := e.Execute(gctx, split)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// backoff sleeps for an increasingly longer duration as attempts accumulate, up
// to a maximum duration.
func (e *Executor) backoff(ctx context.Context, attempt int) error {
	if attempt == 0 {
		return ctx.Err()
	}

	factor := math.Pow(2, float64(attempt-1))
	duration := min(time.Duration(float64(e.initialBackoff)*factor), maxBackoffDuration)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
		return nil
	}
}

// splitCall performs the remote call matching the split kind.
type splitCall struct {
	ctx      context.Context
	executor *Executor
	result   []byte
}

func (c *splitCall) VisitBroker(connectorID string, query *GeneratedQuery) error {
	if c.executor.broker == nil {
		return errors.New("no broker client configured")
	}
	result, err := c.executor.broker.QueryBroker(c.ctx, query)
	c.result = result
	return err
}

func (c *splitCall) VisitSegment(connectorID string, query string, segments []string, segmentHost string) error {
	if c.executor.segments == nil {
		return errors.New("no segment client configured")
	}
	result, err := c.executor.segments.QuerySegments(c.ctx, segmentHost, query, segments)
	c.result = result
	return err
}

var _ SplitVisitor = (*splitCall)(nil)
