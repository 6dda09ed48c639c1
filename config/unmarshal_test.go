package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "reduction.dev/pinot/config"
	"reduction.dev/pinot/config/jsontemplate"
	"reduction.dev/pinot/connectors/pinot"
)

func TestUnmarshal(t *testing.T) {
	params := jsontemplate.NewParams()
	params.Set("BROKER_URL", "http://broker:8099")

	c, err := cfg.Unmarshal([]byte(`{
		"connectorId": "pinot1",
		"brokerUrl": {"param": "BROKER_URL"},
		"segmentsPerSplit": 2,
		"retryLimit": 5,
		"brokerTimeout": "5s",
		"routingTables": {
			"airlineStats": {"10.0.0.5:8098": ["seg_0001", "seg_0002"]}
		}
	}`), params)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, pinot.Config{
		ConnectorID:         "pinot1",
		BrokerURL:           "http://broker:8099",
		SegmentsPerSplit:    2,
		MaxConcurrentSplits: pinot.DefaultMaxConcurrentSplits,
		RetryLimit:          5,
	}, c.Connector)
	assert.Equal(t, 5*time.Second, c.BrokerTimeout)
	assert.Equal(t, pinot.StaticRoutingTables{
		"airlineStats": {"10.0.0.5:8098": {"seg_0001", "seg_0002"}},
	}, c.RoutingTables)
}

func TestUnmarshal_Defaults(t *testing.T) {
	c, err := cfg.Unmarshal([]byte(`{"connectorId": "pinot1", "brokerUrl": "http://broker:8099"}`), nil)
	require.NoError(t, err)

	assert.Equal(t, cfg.DefaultBrokerTimeout, c.BrokerTimeout)
	assert.Equal(t, pinot.DefaultSegmentsPerSplit, c.Connector.SegmentsPerSplit)
	assert.Equal(t, pinot.DefaultRetryLimit, c.Connector.RetryLimit)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := cfg.Unmarshal([]byte(`{`), nil)
	assert.ErrorContains(t, err, "invalid config document format")

	_, err = cfg.Unmarshal([]byte(`{"connectorId": {"param": "PINOT_TEST_MISSING"}}`), nil)
	assert.ErrorContains(t, err, `parameter "PINOT_TEST_MISSING" not found`)

	_, err = cfg.Unmarshal([]byte(`{"connectorId": "pinot1", "brokerTimeout": "soon"}`), nil)
	assert.ErrorContains(t, err, "invalid brokerTimeout")
}

func TestValidate(t *testing.T) {
	c := &cfg.Config{
		Connector:     pinot.Config{SegmentsPerSplit: -1},
		RoutingTables: pinot.StaticRoutingTables{"t": {"": {"seg"}}},
	}
	err := c.Validate()
	assert.ErrorContains(t, err, "pinot connector id is required")
	assert.ErrorContains(t, err, "pinot broker URL is required")
	assert.ErrorContains(t, err, "segments per split must not be negative")
	assert.ErrorContains(t, err, `routing table "t" has an empty host`)
}

func TestConfig_NewSplitManager(t *testing.T) {
	c, err := cfg.Unmarshal([]byte(`{
		"connectorId": "pinot1",
		"brokerUrl": "http://broker:8099",
		"routingTables": {"t": {"host-a": ["seg_1"]}}
	}`), nil)
	require.NoError(t, err)

	splits, err := c.NewSplitManager().Splits(t.Context(), pinot.PlanRequest{Table: "t", SegmentQuery: "SELECT * FROM t"})
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, "pinot1", splits[0].ConnectorID())
}

func TestValidate_RoutingHosts(t *testing.T) {
	c := &cfg.Config{
		Connector: pinot.Config{ConnectorID: "pinot1", BrokerURL: "http://broker:8099"},
		RoutingTables: pinot.StaticRoutingTables{"t": {
			"server-a:8098":  {"seg_1"},
			"server-b":       {"seg_2"},
			"server-c:http":  {"seg_3"},
			"server-d:70000": {"seg_4"},
		}},
	}
	err := c.Validate()
	assert.ErrorContains(t, err, `routing table "t": invalid port in host address "server-c:http"`)
	assert.ErrorContains(t, err, `routing table "t": invalid port in host address "server-d:70000"`)
	assert.NotContains(t, err.Error(), "server-a")
	assert.NotContains(t, err.Error(), "server-b")

	delete(c.RoutingTables["t"], "server-c:http")
	delete(c.RoutingTables["t"], "server-d:70000")
	assert.NoError(t, c.Validate())
}

func TestValidate_BrokerURL(t *testing.T) {
	c := &cfg.Config{Connector: pinot.Config{ConnectorID: "pinot1", BrokerURL: "broker:8099"}}
	assert.ErrorContains(t, c.Validate(), "pinot broker: http URL must have")
}
