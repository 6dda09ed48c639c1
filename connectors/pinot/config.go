package pinot

import (
	"errors"
	"fmt"

	"reduction.dev/pinot/connectors"
)

const (
	DefaultSegmentsPerSplit    = 1
	DefaultMaxConcurrentSplits = 8
	DefaultRetryLimit          = 3
)

// Config contains configuration for one Pinot connector instance.
type Config struct {
	ConnectorID string

	// BrokerURL is the base URL of the broker that receives broker splits.
	BrokerURL string

	// SegmentsPerSplit caps how many segments of one host go in a segment split.
	SegmentsPerSplit int

	// ForbidSegmentQueries makes planning fail instead of creating segment
	// splits.
	ForbidSegmentQueries bool

	MaxConcurrentSplits int
	RetryLimit          int
}

func (c Config) Validate() (err error) {
	if c.ConnectorID == "" {
		err = errors.Join(err, fmt.Errorf("pinot connector id is required"))
	}
	if c.BrokerURL == "" {
		err = errors.Join(err, fmt.Errorf("pinot broker URL is required"))
	} else if urlErr := connectors.ValidateURL(c.BrokerURL); urlErr != nil {
		err = errors.Join(err, fmt.Errorf("pinot broker: %w", urlErr))
	}
	if c.SegmentsPerSplit < 0 {
		err = errors.Join(err, fmt.Errorf("segments per split must not be negative (was %d)", c.SegmentsPerSplit))
	}
	if c.MaxConcurrentSplits < 0 {
		err = errors.Join(err, fmt.Errorf("max concurrent splits must not be negative (was %d)", c.MaxConcurrentSplits))
	}
	if c.RetryLimit < 0 {
		err = errors.Join(err, fmt.Errorf("retry limit must not be negative (was %d)", c.RetryLimit))
	}
	return err
}

// WithDefaults fills unset numeric settings with their defaults.
func (c Config) WithDefaults() Config {
	if c.SegmentsPerSplit == 0 {
		c.SegmentsPerSplit = DefaultSegmentsPerSplit
	}
	if c.MaxConcurrentSplits == 0 {
		c.MaxConcurrentSplits = DefaultMaxConcurrentSplits
	}
	if c.RetryLimit == 0 {
		c.RetryLimit = DefaultRetryLimit
	}
	return c
}
