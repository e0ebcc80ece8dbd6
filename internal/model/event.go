package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Capture modes recorded for each event.
const (
	ModeFull     = "full"
	ModeSnapshot = "snapshot"
)

// DetectionEvent is created when an inbound camera notification has been parsed.
type DetectionEvent struct {
	ID uuid.UUID
	// Channel is the channel number as written in the alert ("02"); it names
	// the media files. Camera.Channel is its normalized form.
	Channel   string
	Camera    Camera
	CreatedAt time.Time
	Sequence  uint64
	Nonce     string
}

// BaseName is the stem shared by the still image and the video clip,
// e.g. 20240131-221503-D2-00000042-9f86d081884c7d65.
func (e *DetectionEvent) BaseName() string {
	channel := e.Channel
	if channel == "" {
		channel = e.Camera.Channel
	}
	return fmt.Sprintf("%s-D%s-%08d-%s", e.CreatedAt.Format("20060102-150405"), channel, e.Sequence, e.Nonce)
}

// StillName is the filename of the captured still image.
func (e *DetectionEvent) StillName() string {
	return e.BaseName() + ".jpg"
}

// VideoName is the filename the video clip is uploaded under.
func (e *DetectionEvent) VideoName() string {
	return e.BaseName() + ".mp4"
}

// EventRecord is the journal row kept for every detection event.
type EventRecord struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Channel   string    `json:"channel"`
	Camera    string    `json:"camera"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
	Annotated bool      `json:"annotated"`
	Notified  bool      `json:"notified"`
	Labels    []string  `json:"labels"`
}

// TagUpdate is published whenever a file's tags change after intake.
type TagUpdate struct {
	Filename string    `json:"filename"`
	Camera   string    `json:"camera"`
	Tags     []string  `json:"tags"`
	Labels   []string  `json:"labels"`
	MediaURL string    `json:"media_url,omitempty"`
	Time     time.Time `json:"time"`
}

var stillNamePattern = regexp.MustCompile(`^(\d{8}-\d{6})-D(\d+)-(\d+)-([0-9a-f]+)\.jpg$`)

// ParseStillName recovers the channel and capture time (local) from a still
// filename produced by StillName.
func ParseStillName(name string) (channel string, createdAt time.Time, err error) {
	m := stillNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, fmt.Errorf("unexpected still name %q", name)
	}
	createdAt, err = time.ParseInLocation("20060102-150405", m[1], time.Local)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid timestamp in %q: %w", name, err)
	}
	return NormalizeChannel(m[2]), createdAt, nil
}
