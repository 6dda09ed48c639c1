package pinot

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"reduction.dev/pinot/connectors"
)

// Split describes one unit of remote work against a Pinot cluster. A broker
// split pushes a whole generated query down to a broker. A segment split scans
// a set of segments directly on the server that owns them.
//
// A Split is immutable once constructed and safe to share between goroutines.
type Split struct {
	connectorID string
	kind        SplitKind

	// Broker splits
	brokerQuery *GeneratedQuery

	// Segment splits
	segmentQuery string
	segments     []string
	segmentHost  string
}

// SplitParams holds the inputs of NewSplit. Empty strings and a nil
// BrokerQuery are treated as absent.
type SplitParams struct {
	ConnectorID  string
	Kind         SplitKind
	BrokerQuery  *GeneratedQuery
	SegmentQuery string
	Segments     []string
	SegmentHost  string
}

// NewSplit validates the fields required by the split kind and returns an
// *InvalidSplitError if any are missing. Fields that don't belong to the kind
// are dropped.
func NewSplit(params SplitParams) (*Split, error) {
	if params.ConnectorID == "" {
		return nil, invalidSplit("connector id is missing")
	}

	s := &Split{
		connectorID: params.ConnectorID,
		kind:        params.Kind,
	}

	switch params.Kind {
	case SplitKindSegment:
		if params.SegmentQuery == "" {
			return nil, invalidSplit("segment query is missing from the split")
		}
		if len(params.Segments) == 0 {
			return nil, invalidSplit("segments are missing from the split")
		}
		if params.SegmentHost == "" {
			return nil, invalidSplit("segment host address is missing from the split")
		}
		s.segmentQuery = params.SegmentQuery
		s.segments = slices.Clone(params.Segments)
		s.segmentHost = params.SegmentHost
	case SplitKindBroker:
		if params.BrokerQuery == nil {
			return nil, invalidSplit("broker query is missing from the split")
		}
		s.brokerQuery = params.BrokerQuery
	default:
		return nil, invalidSplit(fmt.Sprintf("split kind is missing (got %s)", params.Kind))
	}

	return s, nil
}

// NewBrokerSplit creates a split that sends query to a broker for the whole
// logical query.
func NewBrokerSplit(connectorID string, query *GeneratedQuery) (*Split, error) {
	if query == nil {
		return nil, invalidSplit("broker query is nil")
	}
	return NewSplit(SplitParams{
		ConnectorID: connectorID,
		Kind:        SplitKindBroker,
		BrokerQuery: query,
	})
}

// NewSegmentSplit creates a split that runs query against segments directly on
// segmentHost. An empty segments slice is rejected by NewSplit.
func NewSegmentSplit(connectorID string, query string, segments []string, segmentHost string) (*Split, error) {
	if segments == nil {
		return nil, invalidSplit("segments are nil")
	}
	return NewSplit(SplitParams{
		ConnectorID:  connectorID,
		Kind:         SplitKindSegment,
		SegmentQuery: query,
		Segments:     segments,
		SegmentHost:  segmentHost,
	})
}

func (s *Split) ConnectorID() string { return s.connectorID }

func (s *Split) Kind() SplitKind { return s.kind }

// BrokerQuery returns the generated query of a broker split.
func (s *Split) BrokerQuery() (*GeneratedQuery, bool) {
	return s.brokerQuery, s.brokerQuery != nil
}

// SegmentQuery returns the query text of a segment split.
func (s *Split) SegmentQuery() (string, bool) {
	return s.segmentQuery, s.kind == SplitKindSegment
}

// Segments returns a copy of the segment names to scan. Broker splits return an
// empty slice.
func (s *Split) Segments() []string {
	if len(s.segments) == 0 {
		return []string{}
	}
	return slices.Clone(s.segments)
}

// SegmentHost returns the address of the server owning the segments.
func (s *Split) SegmentHost() (string, bool) {
	return s.segmentHost, s.kind == SplitKindSegment
}

// NodeSelectionStrategy is always NoPreference. The segment host is contacted
// by the executor, not used as a placement constraint.
func (s *Split) NodeSelectionStrategy() connectors.NodeSelectionStrategy {
	return connectors.NoPreference
}

func (s *Split) PreferredNodes(sortedCandidates []connectors.HostAddress) []connectors.HostAddress {
	return []connectors.HostAddress{}
}

func (s *Split) Info() any {
	return s
}

func (s *Split) Equal(other *Split) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.connectorID == other.connectorID &&
		s.kind == other.kind &&
		s.brokerQuery.Equal(other.brokerQuery) &&
		s.segmentQuery == other.segmentQuery &&
		slices.Equal(s.segments, other.segments) &&
		s.segmentHost == other.segmentHost
}

func (s *Split) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PinotSplit{connectorId=%s, kind=%s", s.connectorID, s.kind)
	switch s.kind {
	case SplitKindBroker:
		fmt.Fprintf(&b, ", brokerQuery=%s", s.brokerQuery)
	case SplitKindSegment:
		fmt.Fprintf(&b, ", segmentQuery=%q, segments=%v, segmentHost=%s", s.segmentQuery, s.segments, s.segmentHost)
	}
	b.WriteString("}")
	return b.String()
}

func (s *Split) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("connectorId", s.connectorID),
		slog.String("kind", s.kind.String()),
	}
	switch s.kind {
	case SplitKindBroker:
		attrs = append(attrs,
			slog.String("table", s.brokerQuery.Table()),
			slog.String("brokerQuery", s.brokerQuery.Query()))
	case SplitKindSegment:
		attrs = append(attrs,
			slog.String("segmentQuery", s.segmentQuery),
			slog.Any("segments", s.segments),
			slog.String("segmentHost", s.segmentHost))
	}
	return slog.GroupValue(attrs...)
}

// SplitVisitor receives the payload of exactly one split kind.
type SplitVisitor interface {
	VisitBroker(connectorID string, query *GeneratedQuery) error
	VisitSegment(connectorID string, query string, segments []string, segmentHost string) error
}

// Visit dispatches to the visitor method matching the split kind. A split that
// wasn't built by NewSplit returns an *InvalidSplitError.
func (s *Split) Visit(v SplitVisitor) error {
	if err := s.check(); err != nil {
		return err
	}
	switch s.kind {
	case SplitKindBroker:
		return v.VisitBroker(s.connectorID, s.brokerQuery)
	case SplitKindSegment:
		return v.VisitSegment(s.connectorID, s.segmentQuery, s.Segments(), s.segmentHost)
	default:
		return invalidSplit(fmt.Sprintf("unknown split kind %s", s.kind))
	}
}

// check rejects nil splits and zero values that bypassed NewSplit.
func (s *Split) check() error {
	if s == nil {
		return invalidSplit("split is nil")
	}
	if s.kind != SplitKindBroker && s.kind != SplitKindSegment {
		return invalidSplit(fmt.Sprintf("unknown split kind %s", s.kind))
	}
	return nil
}

var (
	_ connectors.Split = (*Split)(nil)
	_ slog.LogValuer   = (*Split)(nil)
)
