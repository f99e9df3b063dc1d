package decode

import (
	"time"

	"github.com/cardialab/ekgraph/schema"
)

// DefaultBatchInterval is the nominal inter-batch period of the
// single-channel variant: the device flushes its sample buffer every 100 ms.
const DefaultBatchInterval = 100 * time.Millisecond

// SpreadBatch assigns synthetic timestamps to a batch of time-sequential
// samples that arrived in one message. Sample i of n gets
// recv + i*interval/n, so timestamps are strictly increasing, the first
// sample lands exactly on recv, and the last stays inside the batch
// interval. A single-value batch maps to recv itself.
func SpreadBatch(recv time.Time, interval time.Duration, values schema.Frame) []schema.Sample {
	n := len(values)
	samples := make([]schema.Sample, n)

	for i, v := range values {
		samples[i] = schema.Sample{
			Timestamp: recv.Add(time.Duration(i) * interval / time.Duration(n)),
			Value:     v,
		}
	}
	return samples
}
