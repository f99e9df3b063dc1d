// Package messages defines the JSON payloads pushed to view clients.
package messages

// Frame is one drawable rolling window for the selected channel.
type Frame struct {
	Channel int        `json:"channel"`
	XRange  [2]float64 `json:"xRange"`
	YRange  [2]float64 `json:"yRange"`
	X       []float64  `json:"x"`
	Y       []float64  `json:"y"`

	// Statistics refreshed with each push. LastBatch and LastBatchBytes
	// describe the most recent batched delivery (single-channel variant).
	Samples        uint64  `json:"samples"`
	SampleRate     float64 `json:"sampleRate"`
	LastBatch      int     `json:"lastBatchSamples,omitempty"`
	LastBatchBytes int     `json:"lastBatchBytes,omitempty"`
}

// Data is the envelope written to the view websocket: a frame, a connection
// status line, or an error.
type Data struct {
	Frame  *Frame `json:"frame,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Now    int64  `json:"now,omitempty"`
}
