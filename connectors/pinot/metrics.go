package pinot

import "github.com/VictoriaMetrics/metrics"

var (
	brokerSplitsCreated  = metrics.NewCounter(`pinot_splits_created_total{kind="BROKER"}`)
	segmentSplitsCreated = metrics.NewCounter(`pinot_splits_created_total{kind="SEGMENT"}`)
	splitsRejected       = metrics.NewCounter("pinot_splits_rejected_total")
)
