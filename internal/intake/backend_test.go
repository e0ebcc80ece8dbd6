package intake

import (
	"errors"
	"fmt"
	"net"
	netsmtp "net/smtp"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/model"
)

type staticPolicy bool

func (p staticPolicy) FullCapture() bool { return bool(p) }

type dispatched struct {
	ev   *model.DetectionEvent
	full bool
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatched
	ch     chan dispatched
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{ch: make(chan dispatched, 128)}
}

func (d *recordingDispatcher) Dispatch(ev *model.DetectionEvent, full bool) {
	d.mu.Lock()
	d.events = append(d.events, dispatched{ev, full})
	d.mu.Unlock()
	d.ch <- dispatched{ev, full}
}

var testCameras = map[string]model.Camera{
	"1": {Channel: "1", Name: "Front door", HiRes: "rtsp://cam1/hi", LoRes: "rtsp://cam1/lo"},
	"2": {Channel: "2", Name: "Garden", HiRes: "rtsp://cam2/hi", LoRes: "rtsp://cam2/lo"},
}

func newTestBackend(full bool) (*Backend, *index.Index, *recordingDispatcher) {
	idx := index.New()
	d := newRecordingDispatcher()
	b := NewBackend(testCameras, idx, staticPolicy(full), d, logger.Nop())
	b.now = func() time.Time { return time.Date(2024, 1, 31, 22, 15, 3, 0, time.Local) }
	return b, idx, d
}

var stillPattern = regexp.MustCompile(`^20240131-221503-D2-(\d{8})-[0-9a-f]{16}\.jpg$`)

func TestMatchChannel(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr error
	}{
		{"subject", "Subject: Motion Detected On Channel D2\r\n\r\nbody", "2", nil},
		{"leading zeros", "Subject: Motion Detected On Channel D02\r\n", "02", nil},
		{"in body", "Subject: alert\r\n\r\nMotion Detected On Channel D13 at 22:00", "13", nil},
		{"other subject", "Subject: Disk full\r\n\r\n", "", ErrUnknownSubject},
		{"no digits", "Subject: Motion Detected On Channel D\r\n", "", ErrUnknownSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchChannel([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MatchChannel error = %v, expected %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MatchChannel = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestBackend_HandleMessage(t *testing.T) {
	b, idx, d := newTestBackend(true)

	ev, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D2\r\n\r\n"))
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	m := stillPattern.FindStringSubmatch(ev.StillName())
	if m == nil {
		t.Fatalf("unexpected still name %s", ev.StillName())
	}
	if m[1] != "00000001" {
		t.Errorf("sequence = %s, expected 00000001", m[1])
	}
	if ev.Camera.Name != "Garden" {
		t.Errorf("camera = %s, expected Garden", ev.Camera.Name)
	}
	if !idx.Has(index.TagAll, ev.StillName()) {
		t.Error("still should be listed under all")
	}
	if len(d.events) != 1 || !d.events[0].full || d.events[0].ev != ev {
		t.Errorf("unexpected dispatches: %+v", d.events)
	}

	next, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D2\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if next.Sequence != 2 || next.StillName() == ev.StillName() {
		t.Errorf("expected a new sequence and name, got %d %s", next.Sequence, next.StillName())
	}
}

func TestBackend_NamesFilesWithChannelAsReceived(t *testing.T) {
	b, idx, _ := newTestBackend(true)

	ev, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D02\r\n"))
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if ev.Camera.Name != "Garden" {
		t.Errorf("camera = %s, expected Garden", ev.Camera.Name)
	}
	if !strings.HasPrefix(ev.StillName(), "20240131-221503-D02-00000001-") {
		t.Errorf("still name %s should carry D02", ev.StillName())
	}
	if !idx.Has(index.TagAll, ev.StillName()) {
		t.Error("still should be listed under all")
	}

	// Both spellings address the same camera and share its counter.
	next, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D2\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if next.Sequence != 2 || stillPattern.FindString(next.StillName()) == "" {
		t.Errorf("unexpected second event %d %s", next.Sequence, next.StillName())
	}
}

func TestBackend_LightweightWhenPolicySaysSo(t *testing.T) {
	b, _, d := newTestBackend(false)

	if _, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D1\r\n")); err != nil {
		t.Fatal(err)
	}
	if len(d.events) != 1 || d.events[0].full {
		t.Errorf("expected a lightweight dispatch, got %+v", d.events)
	}
}

func TestBackend_RejectsUnknownInput(t *testing.T) {
	b, idx, d := newTestBackend(true)

	if _, err := b.HandleMessage([]byte("Subject: Hello\r\n")); !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("expected ErrUnknownSubject, got %v", err)
	}
	if _, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D9\r\n")); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
	if len(d.events) != 0 || len(idx.Files(index.TagAll)) != 0 {
		t.Error("rejected messages must not create events")
	}
}

func TestBackend_ConcurrentEventsGetDistinctNames(t *testing.T) {
	b, idx, _ := newTestBackend(true)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.HandleMessage([]byte("Subject: Motion Detected On Channel D2\r\n")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	files := idx.Files(index.TagAll)
	if len(files) != n {
		t.Fatalf("expected %d distinct stills, got %d", n, len(files))
	}
	seqs := make(map[string]bool)
	for _, f := range files {
		m := stillPattern.FindStringSubmatch(f)
		if m == nil {
			t.Fatalf("unexpected still name %s", f)
		}
		seqs[m[1]] = true
	}
	if len(seqs) != n {
		t.Errorf("expected %d distinct sequence numbers, got %d", n, len(seqs))
	}
}

func startServer(t *testing.T, b *Backend) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(l.Addr().String(), b)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })
	return l.Addr().String()
}

func TestServer_AcceptsEveryMessage(t *testing.T) {
	b, idx, d := newTestBackend(true)
	addr := startServer(t, b)

	messages := []string{
		"Subject: Motion Detected On Channel D1\r\n\r\nalarm\r\n",
		"Subject: Disk full\r\n\r\nnot a motion alert\r\n",
		"Subject: Motion Detected On Channel D7\r\n\r\nunknown camera\r\n",
	}
	for i, msg := range messages {
		if err := netsmtp.SendMail(addr, nil, "nvr@example.com", []string{"motion@example.com"}, []byte(msg)); err != nil {
			t.Errorf("message %d rejected: %v", i, err)
		}
	}

	select {
	case got := <-d.ch:
		if got.ev.Camera.Name != "Front door" {
			t.Errorf("unexpected camera %s", got.ev.Camera.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event dispatched")
	}

	if files := idx.Files(index.TagAll); len(files) != 1 {
		t.Errorf("expected one indexed still, got %v", files)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	b, idx, d := newTestBackend(true)
	addr := startServer(t, b)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := fmt.Sprintf("Subject: Motion Detected On Channel D2\r\n\r\nclient %d\r\n", i)
			if err := netsmtp.SendMail(addr, nil, "nvr@example.com", []string{"motion@example.com"}, []byte(msg)); err != nil {
				t.Errorf("client %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		select {
		case <-d.ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d events dispatched", i, n)
		}
	}
	if files := idx.Files(index.TagAll); len(files) != n {
		t.Errorf("expected %d distinct stills, got %d", n, len(files))
	}
}
