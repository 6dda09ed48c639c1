package pinot

import (
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names shared by the JSON and protobuf encodings. Workers decode splits
// by these names so they must not change.
const (
	fieldConnectorID  = "connectorId"
	fieldKind         = "kind"
	fieldBrokerQuery  = "brokerQuery"
	fieldSegmentQuery = "segmentQuery"
	fieldSegments     = "segments"
	fieldSegmentHost  = "segmentHost"

	fieldTable                 = "table"
	fieldQuery                 = "query"
	fieldExpectedColumnIndices = "expectedColumnIndices"
	fieldGroupByClauses        = "groupByClauses"
	fieldHaveFilter            = "haveFilter"
	fieldIsQueryShort          = "isQueryShort"
)

type splitJSON struct {
	ConnectorID  string          `json:"connectorId"`
	Kind         *SplitKind      `json:"kind,omitempty"`
	BrokerQuery  *GeneratedQuery `json:"brokerQuery,omitempty"`
	SegmentQuery *string         `json:"segmentQuery,omitempty"`
	Segments     []string        `json:"segments"`
	SegmentHost  *string         `json:"segmentHost,omitempty"`
}

func (s *Split) MarshalJSON() ([]byte, error) {
	kind := s.kind
	doc := splitJSON{
		ConnectorID: s.connectorID,
		Kind:        &kind,
		BrokerQuery: s.brokerQuery,
		Segments:    s.Segments(),
	}
	if query, ok := s.SegmentQuery(); ok {
		doc.SegmentQuery = &query
	}
	if host, ok := s.SegmentHost(); ok {
		doc.SegmentHost = &host
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a split and validates it with NewSplit.
func (s *Split) UnmarshalJSON(data []byte) error {
	var doc splitJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode pinot split: %w", err)
	}

	params := SplitParams{
		ConnectorID: doc.ConnectorID,
		BrokerQuery: doc.BrokerQuery,
		Segments:    doc.Segments,
	}
	if doc.Kind != nil {
		params.Kind = *doc.Kind
	}
	if doc.SegmentQuery != nil {
		params.SegmentQuery = *doc.SegmentQuery
	}
	if doc.SegmentHost != nil {
		params.SegmentHost = *doc.SegmentHost
	}

	split, err := NewSplit(params)
	if err != nil {
		return err
	}
	*s = *split
	return nil
}

type generatedQueryJSON struct {
	Table                 string `json:"table"`
	Query                 string `json:"query"`
	ExpectedColumnIndices []int  `json:"expectedColumnIndices"`
	GroupByClauses        int    `json:"groupByClauses"`
	HaveFilter            bool   `json:"haveFilter"`
	IsQueryShort          bool   `json:"isQueryShort"`
}

func (q *GeneratedQuery) MarshalJSON() ([]byte, error) {
	indices := q.expectedColumnIndices
	if indices == nil {
		indices = []int{}
	}
	return json.Marshal(generatedQueryJSON{
		Table:                 q.table,
		Query:                 q.query,
		ExpectedColumnIndices: indices,
		GroupByClauses:        q.groupByClauses,
		HaveFilter:            q.haveFilter,
		IsQueryShort:          q.isQueryShort,
	})
}

func (q *GeneratedQuery) UnmarshalJSON(data []byte) error {
	var doc generatedQueryJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode generated query: %w", err)
	}
	*q = *NewGeneratedQuery(GeneratedQueryParams(doc))
	return nil
}

// ToProto encodes the split as a protobuf Struct using the same field names as
// the JSON encoding.
func (s *Split) ToProto() *structpb.Struct {
	segments := make([]*structpb.Value, len(s.segments))
	for i, seg := range s.segments {
		segments[i] = structpb.NewStringValue(seg)
	}

	fields := map[string]*structpb.Value{
		fieldConnectorID: structpb.NewStringValue(s.connectorID),
		fieldKind:        structpb.NewStringValue(s.kind.String()),
		fieldSegments:    structpb.NewListValue(&structpb.ListValue{Values: segments}),
	}
	switch s.kind {
	case SplitKindBroker:
		fields[fieldBrokerQuery] = structpb.NewStructValue(s.brokerQuery.toProto())
	case SplitKindSegment:
		fields[fieldSegmentQuery] = structpb.NewStringValue(s.segmentQuery)
		fields[fieldSegmentHost] = structpb.NewStringValue(s.segmentHost)
	}
	return &structpb.Struct{Fields: fields}
}

// SplitFromProto decodes a split produced by ToProto and validates it with
// NewSplit.
func SplitFromProto(pb *structpb.Struct) (*Split, error) {
	fields := pb.GetFields()
	var params SplitParams
	var err error

	if params.ConnectorID, err = stringField(fields, fieldConnectorID); err != nil {
		return nil, err
	}
	kindName, err := stringField(fields, fieldKind)
	if err != nil {
		return nil, err
	}
	if kindName != "" {
		if params.Kind, err = ParseSplitKind(kindName); err != nil {
			return nil, err
		}
	}
	if params.SegmentQuery, err = stringField(fields, fieldSegmentQuery); err != nil {
		return nil, err
	}
	if params.SegmentHost, err = stringField(fields, fieldSegmentHost); err != nil {
		return nil, err
	}

	if v, ok := fields[fieldSegments]; ok {
		list, ok := v.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return nil, fmt.Errorf("pinot split field %s must be a list", fieldSegments)
		}
		params.Segments = make([]string, 0, len(list.ListValue.GetValues()))
		for _, item := range list.ListValue.GetValues() {
			seg, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("pinot split field %s must only contain strings", fieldSegments)
			}
			params.Segments = append(params.Segments, seg.StringValue)
		}
	}

	if v, ok := fields[fieldBrokerQuery]; ok {
		st, ok := v.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return nil, fmt.Errorf("pinot split field %s must be a struct", fieldBrokerQuery)
		}
		if params.BrokerQuery, err = generatedQueryFromProto(st.StructValue); err != nil {
			return nil, err
		}
	}

	return NewSplit(params)
}

// MarshalProto returns the deterministic protobuf wire encoding of the split.
func (s *Split) MarshalProto() ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(s.ToProto())
}

// UnmarshalProto decodes bytes produced by MarshalProto.
func UnmarshalProto(data []byte) (*Split, error) {
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("decode pinot split: %w", err)
	}
	return SplitFromProto(&pb)
}

func (q *GeneratedQuery) toProto() *structpb.Struct {
	indices := make([]*structpb.Value, len(q.expectedColumnIndices))
	for i, idx := range q.expectedColumnIndices {
		indices[i] = structpb.NewNumberValue(float64(idx))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTable:                 structpb.NewStringValue(q.table),
		fieldQuery:                 structpb.NewStringValue(q.query),
		fieldExpectedColumnIndices: structpb.NewListValue(&structpb.ListValue{Values: indices}),
		fieldGroupByClauses:        structpb.NewNumberValue(float64(q.groupByClauses)),
		fieldHaveFilter:            structpb.NewBoolValue(q.haveFilter),
		fieldIsQueryShort:          structpb.NewBoolValue(q.isQueryShort),
	}}
}

func generatedQueryFromProto(pb *structpb.Struct) (*GeneratedQuery, error) {
	fields := pb.GetFields()
	var params GeneratedQueryParams
	var err error

	if params.Table, err = stringField(fields, fieldTable); err != nil {
		return nil, err
	}
	if params.Query, err = stringField(fields, fieldQuery); err != nil {
		return nil, err
	}
	if params.GroupByClauses, err = intField(fields[fieldGroupByClauses], fieldGroupByClauses); err != nil {
		return nil, err
	}
	if params.HaveFilter, err = boolField(fields, fieldHaveFilter); err != nil {
		return nil, err
	}
	if params.IsQueryShort, err = boolField(fields, fieldIsQueryShort); err != nil {
		return nil, err
	}

	for _, item := range fields[fieldExpectedColumnIndices].GetListValue().GetValues() {
		idx, err := intField(item, fieldExpectedColumnIndices)
		if err != nil {
			return nil, err
		}
		params.ExpectedColumnIndices = append(params.ExpectedColumnIndices, idx)
	}

	return NewGeneratedQuery(params), nil
}

// stringField returns "" for an absent field.
func stringField(fields map[string]*structpb.Value, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("pinot split field %s must be a string", name)
	}
	return s.StringValue, nil
}

// intField returns 0 for a nil value.
func intField(v *structpb.Value, name string) (int, error) {
	if v == nil {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("pinot split field %s must be a number", name)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("pinot split field %s must be an integer, got %v", name, n.NumberValue)
	}
	if n.NumberValue < math.MinInt32 || n.NumberValue > math.MaxInt32 {
		return 0, fmt.Errorf("pinot split field %s is out of range, got %v", name, n.NumberValue)
	}
	return int(n.NumberValue), nil
}

// boolField returns false for an absent field.
func boolField(fields map[string]*structpb.Value, name string) (bool, error) {
	v, ok := fields[name]
	if !ok {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("pinot split field %s must be a bool", name)
	}
	return b.BoolValue, nil
}
