// Package intake receives camera motion alerts over SMTP and turns them into
// detection events.
package intake

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/model"

	"github.com/google/uuid"
)

var (
	ErrUnknownSubject = errors.New("message is not a motion alert")
	ErrUnknownChannel = errors.New("no camera configured for channel")
)

var motionPattern = regexp.MustCompile(`Motion Detected On Channel D(\d+)`)

// Dispatcher starts the capture work for an event without blocking.
type Dispatcher interface {
	Dispatch(ev *model.DetectionEvent, full bool)
}

// CapturePolicy decides whether an event gets the full capture treatment.
type CapturePolicy interface {
	FullCapture() bool
}

// Backend matches delivered messages against the motion alert subject and
// hands the resulting events to the dispatcher.
type Backend struct {
	cameras    map[string]model.Camera
	index      *index.Index
	policy     CapturePolicy
	dispatcher Dispatcher
	logger     *logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	counters map[string]uint64
}

func NewBackend(cameras map[string]model.Camera, idx *index.Index, policy CapturePolicy, dispatcher Dispatcher, logger *logger.Logger) *Backend {
	return &Backend{
		cameras:    cameras,
		index:      idx,
		policy:     policy,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		counters:   make(map[string]uint64),
	}
}

// MatchChannel extracts the channel number from a raw message, as written.
func MatchChannel(data []byte) (string, error) {
	m := motionPattern.FindSubmatch(data)
	if m == nil {
		return "", ErrUnknownSubject
	}
	return string(m[1]), nil
}

// HandleMessage processes one delivered message. Errors are for logging only;
// the SMTP client is always told the message was accepted.
func (b *Backend) HandleMessage(data []byte) (*model.DetectionEvent, error) {
	raw, err := MatchChannel(data)
	if err != nil {
		return nil, err
	}

	channel := model.NormalizeChannel(raw)
	camera, ok := b.cameras[channel]
	if !ok {
		return nil, fmt.Errorf("%w D%s", ErrUnknownChannel, channel)
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ev := &model.DetectionEvent{
		ID:        uuid.New(),
		Channel:   raw,
		Camera:    camera,
		CreatedAt: b.now(),
		Sequence:  b.next(channel),
		Nonce:     nonce,
	}

	still := ev.StillName()
	b.logger.Info("Motion on D%s (%s): %s", channel, camera.Name, still)
	b.index.Register(still)

	full := b.policy.FullCapture()
	if !full {
		b.logger.Info("Skipping motion detection for %s, grabbing a single image", still)
	}
	b.dispatcher.Dispatch(ev, full)
	return ev, nil
}

func (b *Backend) next(channel string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[channel]++
	return b.counters[channel]
}

func newNonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
