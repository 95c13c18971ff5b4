// Package output renders the primary stdout stream: one JSON line per event
// in monitor mode, one summary document in single-run mode.
package output

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"raywatch/internal/domain"
	"raywatch/internal/service"
)

// Version is the schema version stamped on summary documents
const Version = 2

const (
	MessageNoDevices   = "No devices found on the network."
	MessageUnreachable = "No devices found or failed to retrieve info."
)

// JSONLines writes each event as one JSON line and flushes it immediately
type JSONLines struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLines creates an event sink writing to w
func NewJSONLines(w io.Writer) *JSONLines {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLines{w: bw, enc: enc}
}

// Emit implements service.Sink
func (j *JSONLines) Emit(_ context.Context, ev domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.enc.Encode(ev); err != nil {
		return err
	}
	return j.w.Flush()
}

type devicesDocument struct {
	Devices []domain.DeviceInfo `json:"devices"`
	Version int                 `json:"version"`
}

type failureDocument struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version int    `json:"version"`
}

// Summary returns the single-run document for a cycle
func Summary(res service.CycleResult) any {
	switch {
	case len(res.Units) == 0:
		return failureDocument{Message: MessageNoDevices, Version: Version}
	case len(res.Devices) == 0:
		return failureDocument{Message: MessageUnreachable, Version: Version}
	}
	return devicesDocument{Devices: res.Devices, Version: Version}
}

// WriteSummary writes the single-run document for res to w, indented by two
// spaces
func WriteSummary(w io.Writer, res service.CycleResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(Summary(res))
}
