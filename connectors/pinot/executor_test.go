package pinot_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reduction.dev/pinot/connectors"
	"reduction.dev/pinot/connectors/pinot"
)

type fakeBroker struct {
	mu       sync.Mutex
	calls    int
	failures []error
}

func (b *fakeBroker) QueryBroker(ctx context.Context, query *pinot.GeneratedQuery) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		return nil, err
	}
	return []byte("broker:" + query.Table()), nil
}

type fakeSegmentServer struct {
	mu    sync.Mutex
	hosts []string
	err   error
}

func (s *fakeSegmentServer) QuerySegments(ctx context.Context, host string, query string, segments []string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = append(s.hosts, host)
	if s.err != nil {
		return nil, s.err
	}
	return []byte(fmt.Sprintf("%s:%s", host, strings.Join(segments, ","))), nil
}

func newTestExecutor(broker pinot.BrokerClient, segments pinot.SegmentClient) *pinot.Executor {
	return pinot.NewExecutor(pinot.ExecutorParams{
		Config:         pinot.Config{ConnectorID: "pinot1", RetryLimit: 2},
		BrokerClient:   broker,
		SegmentClient:  segments,
		InitialBackoff: time.Millisecond,
	})
}

func TestExecutor_DispatchesByKind(t *testing.T) {
	broker := &fakeBroker{}
	server := &fakeSegmentServer{}
	e := newTestExecutor(broker, server)
	splits := testSplits(t)

	result, err := e.Execute(t.Context(), splits[0])
	require.NoError(t, err)
	assert.Equal(t, "broker:airlineStats", string(result))

	result, err = e.Execute(t.Context(), splits[1])
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8080:seg_0001,seg_0002", string(result))

	assert.Equal(t, 1, broker.calls)
	assert.Equal(t, []string{"10.0.0.5:8080"}, server.hosts)
}

func TestExecutor_RetriesRetryableErrors(t *testing.T) {
	broker := &fakeBroker{failures: []error{
		connectors.NewRetryableError(errors.New("broker unavailable")),
		connectors.NewRetryableError(errors.New("broker unavailable")),
	}}
	e := newTestExecutor(broker, nil)

	result, err := e.Execute(t.Context(), testSplits(t)[0])
	require.NoError(t, err)
	assert.Equal(t, "broker:airlineStats", string(result))
	assert.Equal(t, 3, broker.calls)
}

func TestExecutor_StopsAfterRetryLimit(t *testing.T) {
	retryable := connectors.NewRetryableError(errors.New("broker unavailable"))
	broker := &fakeBroker{failures: []error{retryable, retryable, retryable, retryable}}
	e := newTestExecutor(broker, nil)

	_, err := e.Execute(t.Context(), testSplits(t)[0])
	assert.ErrorIs(t, err, retryable)
	assert.Equal(t, 3, broker.calls, "one attempt plus two retries")
}

func TestExecutor_DoesNotRetryTerminalErrors(t *testing.T) {
	broker := &fakeBroker{failures: []error{connectors.NewTerminalError(errors.New("bad query"))}}
	e := newTestExecutor(broker, nil)

	_, err := e.Execute(t.Context(), testSplits(t)[0])
	assert.EqualError(t, err, "execute BROKER split: bad query")
	assert.Equal(t, 1, broker.calls)
}

func TestExecutor_MissingClient(t *testing.T) {
	e := newTestExecutor(nil, nil)
	_, err := e.Execute(t.Context(), testSplits(t)[1])
	assert.ErrorContains(t, err, "no segment client configured")
}

func TestExecutor_ExecuteAllKeepsInputOrder(t *testing.T) {
	e := newTestExecutor(&fakeBroker{}, &fakeSegmentServer{})
	m := pinot.NewSplitManager(pinot.Config{ConnectorID: "pinot1"}, testRouting)
	splits, err := m.Splits(t.Context(), pinot.PlanRequest{Table: "airlineStats", SegmentQuery: "SELECT *"})
	require.NoError(t, err)

	results, err := e.ExecuteAll(t.Context(), splits)
	require.NoError(t, err)

	var got []string
	for _, r := range results {
		got = append(got, string(r))
	}
	assert.Equal(t, []string{
		"server-a:8098:seg_0001",
		"server-a:8098:seg_0002",
		"server-b:8098:seg_0003",
		"server-b:8098:seg_0004",
		"server-b:8098:seg_0005",
	}, got)
}

func TestExecutor_ExecuteAllReturnsFirstError(t *testing.T) {
	server := &fakeSegmentServer{err: connectors.NewTerminalError(errors.New("segment missing"))}
	e := newTestExecutor(&fakeBroker{}, server)

	results, err := e.ExecuteAll(t.Context(), testSplits(t))
	assert.ErrorContains(t, err, "segment missing")
	assert.Nil(t, results)
}

func TestExecutor_CanceledContext(t *testing.T) {
	broker := &fakeBroker{failures: []error{connectors.NewRetryableError(errors.New("broker unavailable"))}}
	e := pinot.NewExecutor(pinot.ExecutorParams{
		Config:         pinot.Config{ConnectorID: "pinot1", RetryLimit: 5},
		BrokerClient:   broker,
		InitialBackoff: time.Hour,
	})

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Execute(ctx, testSplits(t)[0])
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, broker.calls)
}

func TestExecutor_RejectsSplitsNotBuiltByConstructor(t *testing.T) {
	e := newTestExecutor(&fakeBroker{}, &fakeSegmentServer{})

	_, err := e.Execute(t.Context(), &pinot.Split{})
	assert.ErrorIs(t, err, pinot.ErrInvalidSplit)

	_, err = e.Execute(t.Context(), nil)
	assert.ErrorIs(t, err, pinot.ErrInvalidSplit)

	results, err := e.ExecuteAll(t.Context(), []*pinot.Split{testSplits(t)[0], {}})
	assert.ErrorIs(t, err, pinot.ErrInvalidSplit)
	assert.Nil(t, results)
}
