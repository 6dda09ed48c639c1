package config

import (
	"errors"
	"fmt"
	"time"

	"reduction.dev/pinot/connectors"
	"reduction.dev/pinot/connectors/pinot"
)

const DefaultBrokerTimeout = 30 * time.Second

// The object representing connector configuration.
type Config struct {
	Connector     pinot.Config
	BrokerTimeout time.Duration

	// RoutingTables lists the segments each server hosts per table.
	RoutingTables pinot.StaticRoutingTables
}

func (c *Config) Validate() (err error) {
	err = errors.Join(err, c.Connector.Validate())
	if c.BrokerTimeout < 0 {
		err = errors.Join(err, fmt.Errorf("broker timeout must not be negative (was %s)", c.BrokerTimeout))
	}
	for table, hosts := range c.RoutingTables {
		for host := range hosts {
			if host == "" {
				err = errors.Join(err, fmt.Errorf("routing table %q has an empty host", table))
				continue
			}
			if _, hostErr := connectors.ParseHostAddress(host); hostErr != nil {
				err = errors.Join(err, fmt.Errorf("routing table %q: %w", table, hostErr))
			}
		}
	}
	return err
}

// NewSplitManager creates a split manager that plans against the configured
// routing tables.
func (c *Config) NewSplitManager() *pinot.SplitManager {
	return pinot.NewSplitManager(c.Connector, c.RoutingTables)
}

// NewExecutor creates an executor calling the configured broker. Segment splits
// need a SegmentClient.
func (c *Config) NewExecutor(segments pinot.SegmentClient) *pinot.Executor {
	return pinot.NewExecutor(pinot.ExecutorParams{
		Config:        c.Connector,
		BrokerClient:  pinot.NewHTTPBrokerClient(c.Connector.BrokerURL, c.BrokerTimeout),
		SegmentClient: segments,
	})
}
