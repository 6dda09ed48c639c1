package pinot_test

import (
	"encoding/json"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"reduction.dev/pinot/connectors/pinot"
)

func testSplits(t *testing.T) []*pinot.Split {
	brokerSplit, err := pinot.NewBrokerSplit("pinot1", testBrokerQuery())
	require.NoError(t, err)
	segmentSplit, err := pinot.NewSegmentSplit("pinot1", "SELECT * FROM t", []string{"seg_0001", "seg_0002"}, "10.0.0.5:8080")
	require.NoError(t, err)
	return []*pinot.Split{brokerSplit, segmentSplit}
}

func TestSplit_JSONRoundTrip(t *testing.T) {
	for _, split := range testSplits(t) {
		t.Run(split.Kind().String(), func(t *testing.T) {
			data, err := json.Marshal(split)
			require.NoError(t, err)

			var decoded pinot.Split
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.True(t, split.Equal(&decoded), "expected %s, got %s", split, &decoded)
		})
	}
}

func TestSplit_JSONOmitsAbsentFields(t *testing.T) {
	splits := testSplits(t)

	data, err := json.Marshal(splits[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"connectorId": "pinot1",
		"kind": "BROKER",
		"brokerQuery": {
			"table": "airlineStats",
			"query": "SELECT count(*) FROM airlineStats GROUP BY Carrier TOP 10",
			"expectedColumnIndices": [1, 0],
			"groupByClauses": 1,
			"haveFilter": false,
			"isQueryShort": true
		},
		"segments": []
	}`, string(data))

	data, err = json.Marshal(splits[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"connectorId": "pinot1",
		"kind": "SEGMENT",
		"segmentQuery": "SELECT * FROM t",
		"segments": ["seg_0001", "seg_0002"],
		"segmentHost": "10.0.0.5:8080"
	}`, string(data))
}

func TestSplit_UnmarshalJSONValidates(t *testing.T) {
	var split pinot.Split
	err := json.Unmarshal([]byte(`{"connectorId": "pinot1", "kind": "SEGMENT", "segmentQuery": "SELECT * FROM t", "segments": []}`), &split)
	assert.ErrorIs(t, err, pinot.ErrInvalidSplit)

	err = json.Unmarshal([]byte(`{"connectorId": "pinot1", "segments": []}`), &split)
	assert.ErrorIs(t, err, pinot.ErrInvalidSplit, "missing kind")

	err = json.Unmarshal([]byte(`{"connectorId": "pinot1", "kind": "REALTIME"}`), &split)
	assert.ErrorContains(t, err, `unknown split kind "REALTIME"`)
}

func TestSplit_ProtoRoundTrip(t *testing.T) {
	for _, split := range testSplits(t) {
		t.Run(split.Kind().String(), func(t *testing.T) {
			data, err := split.MarshalProto()
			require.NoError(t, err)

			decoded, err := pinot.UnmarshalProto(data)
			require.NoError(t, err)
			assert.True(t, split.Equal(decoded), "expected %s, got %s", split, decoded)
		})
	}
}

func TestSplit_ToProtoOmitsAbsentFields(t *testing.T) {
	splits := testSplits(t)

	brokerFields := splits[0].ToProto().GetFields()
	assert.Contains(t, brokerFields, "brokerQuery")
	assert.NotContains(t, brokerFields, "segmentQuery")
	assert.NotContains(t, brokerFields, "segmentHost")

	segmentFields := splits[1].ToProto().GetFields()
	assert.NotContains(t, segmentFields, "brokerQuery")
	assert.Equal(t, "10.0.0.5:8080", segmentFields["segmentHost"].GetStringValue())
}

func TestSplitFromProto_Validates(t *testing.T) {
	pb, err := structpb.NewStruct(map[string]any{
		"connectorId":  "pinot1",
		"kind":         "SEGMENT",
		"segmentQuery": "SELECT * FROM t",
		"segments":     []any{"seg_0001"},
	})
	require.NoError(t, err)
	_, err = pinot.SplitFromProto(pb)
	assert.ErrorIs(t, err, pinot.ErrInvalidSplit, "segment host is missing")

	pb, err = structpb.NewStruct(map[string]any{
		"connectorId": "pinot1",
		"kind":        "SEGMENT",
		"segments":    []any{1.0},
	})
	require.NoError(t, err)
	_, err = pinot.SplitFromProto(pb)
	assert.ErrorContains(t, err, "must only contain strings")
}

func TestGeneratedQuery_CopiesIndices(t *testing.T) {
	indices := []int{2, 0, 1}
	query := pinot.NewGeneratedQuery(pinot.GeneratedQueryParams{
		Table:                 "t",
		Query:                 "SELECT a, b, c FROM t",
		ExpectedColumnIndices: indices,
	})

	indices[0] = 7
	assert.Equal(t, []int{2, 0, 1}, query.ExpectedColumnIndices())

	observed := query.ExpectedColumnIndices()
	observed[0] = 7
	assert.Equal(t, []int{2, 0, 1}, query.ExpectedColumnIndices())
}

func TestSplitFromProto_RejectsOutOfRangeNumbers(t *testing.T) {
	pb := testSplits(t)[0].ToProto()
	query := pb.GetFields()["brokerQuery"].GetStructValue()
	query.Fields["groupByClauses"] = structpb.NewNumberValue(1e30)

	_, err := pinot.SplitFromProto(pb)
	assert.EqualError(t, err, "pinot split field groupByClauses is out of range, got 1e+30")

	query.Fields["groupByClauses"] = structpb.NewNumberValue(1)
	query.Fields["expectedColumnIndices"] = structpb.NewListValue(&structpb.ListValue{
		Values: []*structpb.Value{structpb.NewNumberValue(-1e12)},
	})
	_, err = pinot.SplitFromProto(pb)
	assert.ErrorContains(t, err, "pinot split field expectedColumnIndices is out of range")
}

func TestSplitFromProto_RejectsNonBoolFlags(t *testing.T) {
	for _, field := range []string{"haveFilter", "isQueryShort"} {
		t.Run(field, func(t *testing.T) {
			pb := testSplits(t)[0].ToProto()
			query := pb.GetFields()["brokerQuery"].GetStructValue()
			query.Fields[field] = structpb.NewStringValue("true")

			_, err := pinot.SplitFromProto(pb)
			assert.EqualError(t, err, "pinot split field "+field+" must be a bool")
		})
	}
}

func TestSplit_DecodingDoesNotCountCreatedSplits(t *testing.T) {
	created := metrics.GetOrCreateCounter(`pinot_splits_created_total{kind="SEGMENT"}`)
	rejected := metrics.GetOrCreateCounter("pinot_splits_rejected_total")
	createdBefore, rejectedBefore := created.Get(), rejected.Get()

	split := testSplits(t)[1]
	data, err := json.Marshal(split)
	require.NoError(t, err)
	protoData, err := split.MarshalProto()
	require.NoError(t, err)

	for range 5 {
		var decoded pinot.Split
		require.NoError(t, json.Unmarshal(data, &decoded))
		_, err := pinot.UnmarshalProto(protoData)
		require.NoError(t, err)
	}
	var bad pinot.Split
	assert.Error(t, json.Unmarshal([]byte(`{"connectorId": "pinot1", "kind": "SEGMENT"}`), &bad))

	assert.Equal(t, createdBefore, created.Get())
	assert.Equal(t, rejectedBefore, rejected.Get())
}
