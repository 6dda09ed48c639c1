package pinot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var ErrSegmentQueriesForbidden = errors.New("segment queries are forbidden for this connector")

// PlanRequest is the planner's decision for one table scan.
type PlanRequest struct {
	Table string

	// Broker is set when the whole query can be pushed down to the broker.
	Broker *GeneratedQuery

	// SegmentQuery runs against every group of segments when Broker is nil.
	SegmentQuery string
}

// SplitManager turns planning decisions into splits.
type SplitManager struct {
	config  Config
	routing RoutingTableProvider
	logger  *slog.Logger
}

func NewSplitManager(config Config, routing RoutingTableProvider) *SplitManager {
	return &SplitManager{
		config:  config.WithDefaults(),
		routing: routing,
		logger:  slog.With("instanceID", "split-manager", "connectorId", config.ConnectorID),
	}
}

// Splits returns a single broker split when the request carries a broker query.
// Otherwise it returns one segment split per host and group of at most
// SegmentsPerSplit segments, with hosts in ascending order.
func (m *SplitManager) Splits(ctx context.Context, req PlanRequest) ([]*Split, error) {
	if req.Broker != nil {
		split, err := NewBrokerSplit(m.config.ConnectorID, req.Broker)
		if err != nil {
			splitsRejected.Inc()
			return nil, err
		}
		brokerSplitsCreated.Inc()
		m.logger.Debug("planned broker split", "split", split)
		return []*Split{split}, nil
	}

	if m.config.ForbidSegmentQueries {
		return nil, fmt.Errorf("plan table %s: %w", req.Table, ErrSegmentQueriesForbidden)
	}

	rt, err := m.routing.RoutingTable(ctx, req.Table)
	if err != nil {
		return nil, fmt.Errorf("plan table %s: %w", req.Table, err)
	}
	if rt.SegmentCount() == 0 {
		return nil, fmt.Errorf("plan table %s: routing table has no segments", req.Table)
	}

	var splits []*Split
	for host, segments := range rt.Hosts() {
		for chunk := range slices.Chunk(segments, max(m.config.SegmentsPerSplit, 1)) {
			split, err := NewSegmentSplit(m.config.ConnectorID, req.SegmentQuery, chunk, host)
			if err != nil {
				splitsRejected.Inc()
				return nil, fmt.Errorf("plan table %s: %w", req.Table, err)
			}
			segmentSplitsCreated.Inc()
			splits = append(splits, split)
		}
	}

	m.logger.Debug("planned segment splits", "table", req.Table, "count", len(splits))
	return splits, nil
}
