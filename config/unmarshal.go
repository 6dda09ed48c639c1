package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"reduction.dev/pinot/config/jsontemplate"
	"reduction.dev/pinot/connectors/pinot"
)

type configDocument struct {
	ConnectorID          jsontemplate.StringVar         `json:"connectorId"`
	BrokerURL            jsontemplate.StringVar         `json:"brokerUrl"`
	SegmentsPerSplit     int                            `json:"segmentsPerSplit"`
	ForbidSegmentQueries bool                           `json:"forbidSegmentQueries"`
	MaxConcurrentSplits  int                            `json:"maxConcurrentSplits"`
	RetryLimit           int                            `json:"retryLimit"`
	BrokerTimeout        string                         `json:"brokerTimeout"`
	RoutingTables        map[string]map[string][]string `json:"routingTables"`
}

// Unmarshal parses a connector configuration from JSON, resolving parameter
// references from params. Unset numeric settings get their defaults.
func Unmarshal(data []byte, params *jsontemplate.Params) (*Config, error) {
	var doc configDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid config document format: %v", err)
	}

	connectorID, err := doc.ConnectorID.Resolve(params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve connectorId: %v", err)
	}
	brokerURL, err := doc.BrokerURL.Resolve(params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve brokerUrl: %v", err)
	}

	brokerTimeout := DefaultBrokerTimeout
	if doc.BrokerTimeout != "" {
		brokerTimeout, err = time.ParseDuration(doc.BrokerTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid brokerTimeout: %v", err)
		}
	}

	config := &Config{
		Connector: pinot.Config{
			ConnectorID:          connectorID,
			BrokerURL:            brokerURL,
			SegmentsPerSplit:     doc.SegmentsPerSplit,
			ForbidSegmentQueries: doc.ForbidSegmentQueries,
			MaxConcurrentSplits:  doc.MaxConcurrentSplits,
			RetryLimit:           doc.RetryLimit,
		}.WithDefaults(),
		BrokerTimeout: brokerTimeout,
		RoutingTables: doc.RoutingTables,
	}

	slog.Info("resolved connector config",
		"connectorId", config.Connector.ConnectorID,
		"brokerUrl", config.Connector.BrokerURL,
		"segmentsPerSplit", config.Connector.SegmentsPerSplit,
		"tables", len(config.RoutingTables))

	return config, nil
}
