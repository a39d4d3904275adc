// Package binformat implements the on-disk binary format (C5) and its
// memory-mapped reader (C2): row-major float64 arrays of shape
// [N, 1+K] with a JSON sidecar carrying the metadata needed to
// reinterpret the raw bytes, plus a downsampled overview JSON for the
// initial full-file view.
package binformat

import (
	"encoding/json"
	"fmt"
	"os"
)

// formatVersion is bumped whenever the sidecar schema changes in a way
// that isn't backward compatible.
const formatVersion = 2

// XColumnMeta describes the x column, always at Column 0 (spec.md §3).
type XColumnMeta struct {
	Name     string  `json:"name"`
	Unit     string  `json:"unit,omitempty"`
	Type     string  `json:"type"`
	Column   int     `json:"column"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Format   string  `json:"format,omitempty"`
	Timezone string  `json:"timezone,omitempty"`
}

// ChannelMeta describes one data channel and its column position in the
// row-major binary layout.
type ChannelMeta struct {
	Name   string `json:"name"`
	Unit   string `json:"unit,omitempty"`
	Color  string `json:"color,omitempty"`
	Column int    `json:"column"`
}

// Meta is the `{stem}_meta.json` sidecar describing how to interpret
// `{stem}.bin`'s raw bytes (spec.md §3).
type Meta struct {
	Version     int           `json:"version"`
	Shape       [2]int64      `json:"shape"` // [N, 1+K]
	Dtype       string        `json:"dtype"` // always "float64"
	TotalPoints int64         `json:"totalPoints"`
	XColumn     XColumnMeta   `json:"xColumn"`
	Channels    []ChannelMeta `json:"channels"`
}

// NumChannels returns K, derived from Shape.
func (m Meta) NumChannels() int {
	return int(m.Shape[1]) - 1
}

// ChannelNames returns the channel names in column order.
func (m Meta) ChannelNames() []string {
	names := make([]string, len(m.Channels))
	for i, c := range m.Channels {
		names[i] = c.Name
	}
	return names
}

// WriteMeta serializes m as the sidecar JSON at path.
func WriteMeta(path string, m Meta) error {
	m.Version = formatVersion
	m.Dtype = "float64"
	m.XColumn.Column = 0

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("binformat: marshal meta: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("binformat: write meta %s: %w", path, err)
	}
	return nil
}

// ReadMeta loads and validates the sidecar JSON at path.
func ReadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("binformat: read meta %s: %w", path, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("binformat: unmarshal meta %s: %w", path, err)
	}
	if m.Dtype != "float64" {
		return Meta{}, fmt.Errorf("binformat: unsupported dtype %q in %s", m.Dtype, path)
	}
	if len(m.Channels) != m.NumChannels() {
		return Meta{}, fmt.Errorf("binformat: meta %s declares %d channel names but shape implies %d", path, len(m.Channels), m.NumChannels())
	}
	return m, nil
}

// OverviewChannel is one `data[]` entry in the overview JSON: exactly one
// entry across the set has X=true.
type OverviewChannel struct {
	X     bool      `json:"x"`
	Name  string    `json:"name"`
	Unit  string    `json:"unit,omitempty"`
	Color string    `json:"color,omitempty"`
	Data  []float64 `json:"data"`
}

// OverviewMeta is the embedded `meta` object inside `{stem}_overview.json`.
type OverviewMeta struct {
	XType         string  `json:"xType"`
	XFormat       string  `json:"xFormat,omitempty"`
	XMin          float64 `json:"xMin"`
	XMax          float64 `json:"xMax"`
	TotalPoints   int64   `json:"totalPoints"`
	OverviewPoints int    `json:"overviewPoints"`
}

// Overview is `{stem}_overview.json`'s top-level shape.
type Overview struct {
	Meta OverviewMeta      `json:"meta"`
	Data []OverviewChannel `json:"data"`
}

// WriteOverview serializes ov to path.
func WriteOverview(path string, ov Overview) error {
	data, err := json.MarshalIndent(ov, "", "  ")
	if err != nil {
		return fmt.Errorf("binformat: marshal overview: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("binformat: write overview %s: %w", path, err)
	}
	return nil
}

// ReadOverview loads the overview JSON at path.
func ReadOverview(path string) (Overview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overview{}, fmt.Errorf("binformat: read overview %s: %w", path, err)
	}
	var ov Overview
	if err := json.Unmarshal(data, &ov); err != nil {
		return Overview{}, fmt.Errorf("binformat: unmarshal overview %s: %w", path, err)
	}
	return ov, nil
}
