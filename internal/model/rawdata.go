package model

import (
	"fmt"
	"sort"
)

// RawData holds the sensor readings of a single process run. Every channel
// shares the same length; one channel carries the timestamp axis as unix
// seconds and must be monotone non-decreasing.
type RawData struct {
	Channels        map[string][]float64
	TimestampColumn string
}

// Metadata describes a loaded dataset, as produced by source adapters.
type Metadata struct {
	RowCount        int
	ColumnCount     int
	Columns         []string
	TimestampColumn string
	Source          string
}

// Len returns the number of samples per channel.
func (d *RawData) Len() int {
	if d == nil {
		return 0
	}
	ts, ok := d.Channels[d.TimestampColumn]
	if ok {
		return len(ts)
	}
	for _, samples := range d.Channels {
		return len(samples)
	}
	return 0
}

// Timestamps returns the timestamp axis.
func (d *RawData) Timestamps() []float64 {
	if d == nil {
		return nil
	}
	return d.Channels[d.TimestampColumn]
}

// Channel returns the named channel and whether it exists.
func (d *RawData) Channel(name string) ([]float64, bool) {
	if d == nil {
		return nil, false
	}
	samples, ok := d.Channels[name]
	return samples, ok
}

// ColumnNames returns the channel names in sorted order.
func (d *RawData) ColumnNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Channels))
	for name := range d.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the RawData invariants: equal channel lengths and a
// monotone non-decreasing timestamp axis.
func (d *RawData) Validate() error {
	if d == nil || len(d.Channels) == 0 {
		return fmt.Errorf("raw data has no channels")
	}

	ts, ok := d.Channels[d.TimestampColumn]
	if !ok {
		return fmt.Errorf("timestamp column %q missing from channels", d.TimestampColumn)
	}

	for name, samples := range d.Channels {
		if len(samples) != len(ts) {
			return fmt.Errorf("channel %q has %d samples, timestamp axis has %d", name, len(samples), len(ts))
		}
	}

	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			return fmt.Errorf("timestamp axis decreases at index %d", i)
		}
	}

	return nil
}
