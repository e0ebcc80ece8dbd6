package dto

import (
	"encoding/json"
	"time"
)

// EventInfo is a journal entry as shown by the UI.
type EventInfo struct {
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	Mode      string    `json:"mode"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Labels    []string  `json:"labels"`
	Tags      []string  `json:"tags"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Notified  bool      `json:"notified"`
}

// MarshalJSON customizes JSON output for EventInfo to format date and time-of-day.
func (e EventInfo) MarshalJSON() ([]byte, error) {
	type Alias EventInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      e.Date.Format("02-01-2006"),
		TimeOfDay: e.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(e),
	})
}
