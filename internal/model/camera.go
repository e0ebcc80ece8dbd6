package model

import "strings"

// Camera is a configured camera channel. Instances are built once at startup
// and never mutated afterwards.
type Camera struct {
	Channel string `json:"channel"`
	Name    string `json:"name"`
	HiRes   string `json:"hires"`
	LoRes   string `json:"lores"`
	// Streams maps a variant name (e.g. "Preview", "HD") to an HLS URL shown
	// by the browsing UI.
	Streams map[string]string `json:"streams,omitempty"`
}

// PreviewStream returns the HLS URL used for the live-stream table, if any.
func (c Camera) PreviewStream() (string, bool) {
	url, ok := c.Streams["Preview"]
	return url, ok && url != ""
}

// NormalizeChannel strips leading zeros so "02" and "2" address the same camera.
func NormalizeChannel(channel string) string {
	trimmed := strings.TrimLeft(channel, "0")
	if trimmed == "" && channel != "" {
		return "0"
	}
	return trimmed
}
