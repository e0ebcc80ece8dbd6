// Package capture runs the external capture and upload commands for each
// detection event and feeds the results into the tag index.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"camwatch/internal/annotation"
	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/model"
)

// LightweightEnv tells the capture command to grab a snapshot without annotating it.
const LightweightEnv = "DONT_ANNOTATE=1"

// Observer is told about every tag change made after intake.
type Observer interface {
	Observe(update model.TagUpdate)
}

// Journal records event history. Implemented by the SQLite event repository.
type Journal interface {
	Insert(ev *model.EventRecord) error
	SetLabels(id string, labels []string) error
	MarkNotified(id string) error
}

// Notifier delivers push notifications, at most once per key.
type Notifier interface {
	Notify(ctx context.Context, key, camera string, labels []string, mediaURL string) bool
}

type Config struct {
	DataDirectory   string
	CaptureCommand  string
	UploadCommand   string
	UploadURLPrefix string
}

// Orchestrator turns detection events into capture tasks. Dispatch never blocks
// on the commands themselves.
type Orchestrator struct {
	cfg        Config
	runner     Runner
	supervisor *Supervisor
	filter     *annotation.Filter
	index      *index.Index
	journal    Journal
	notifier   Notifier
	observers  []Observer
	logger     *logger.Logger
}

// NewOrchestrator wires the orchestrator. journal and notifier may be nil.
func NewOrchestrator(cfg Config, runner Runner, supervisor *Supervisor, filter *annotation.Filter,
	idx *index.Index, journal Journal, notifier Notifier, logger *logger.Logger, observers ...Observer) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		runner:     runner,
		supervisor: supervisor,
		filter:     filter,
		index:      idx,
		journal:    journal,
		notifier:   notifier,
		observers:  observers,
		logger:     logger,
	}
}

// MediaURL is where the video clip for ev is uploaded.
func (o *Orchestrator) MediaURL(ev *model.DetectionEvent) string {
	return o.cfg.UploadURLPrefix + ev.VideoName()
}

// Dispatch starts the tasks for ev. A full capture grabs and annotates a still
// and uploads a video clip; otherwise a single unannotated snapshot is taken.
func (o *Orchestrator) Dispatch(ev *model.DetectionEvent, full bool) {
	still := ev.StillName()
	stillPath := filepath.Join(o.cfg.DataDirectory, still)

	mode := model.ModeSnapshot
	if full {
		mode = model.ModeFull
	}
	o.record(ev, mode)

	if !full {
		o.logger.Info("Grabbing a single snapshot for %s", still)
		o.index.MarkUnannotated(still)
		o.publish(ev, nil, "")
		o.supervisor.Go("snapshot "+still, func(ctx context.Context) {
			if _, err := o.runner.Run(ctx, []string{LightweightEnv}, o.cfg.CaptureCommand, ev.Camera.HiRes, stillPath); err != nil {
				o.logger.Error("Snapshot capture for %s failed: %v", still, err)
			}
		})
		return
	}

	mediaURL := o.MediaURL(ev)
	o.supervisor.Go("annotate "+still, func(ctx context.Context) {
		o.captureAndAnnotate(ctx, ev, stillPath, mediaURL)
	})
	o.supervisor.Go("upload "+ev.VideoName(), func(ctx context.Context) {
		if _, err := o.runner.Run(ctx, nil, o.cfg.UploadCommand, ev.Camera.LoRes, mediaURL); err != nil {
			o.logger.Error("Video upload to %s failed: %v", mediaURL, err)
		}
	})
}

func (o *Orchestrator) captureAndAnnotate(ctx context.Context, ev *model.DetectionEvent, stillPath, mediaURL string) {
	still := ev.StillName()

	// A failing command may still have printed annotations; whatever came
	// back is used, and no output means no objects.
	payload, err := o.runner.Run(ctx, nil, o.cfg.CaptureCommand, ev.Camera.HiRes, stillPath)
	if err != nil {
		o.logger.Error("Capture for %s failed: %v", still, err)
	}

	labels, res := o.filter.Labels(payload)
	if res.Err != nil {
		o.logger.Warning("Annotation payload for %s not recognized: %v", still, res.Err)
	} else {
		o.logger.Info("%s: %d annotations from %s, interesting: %v", still, len(res.Annotations), res.Provider, labels)
	}

	if err := o.persistSidecar(stillPath, payload); err != nil {
		o.logger.Warning("Failed to write annotation sidecar for %s: %v", still, err)
	}

	o.index.MarkAnnotated(still, labels)
	if o.journal != nil {
		if err := o.journal.SetLabels(ev.ID.String(), labels); err != nil {
			o.logger.Error("Failed to record labels for %s: %v", still, err)
		}
	}
	o.publish(ev, labels, mediaURL)

	if len(labels) == 0 || o.notifier == nil {
		return
	}
	if o.notifier.Notify(ctx, still, ev.Camera.Name, labels, mediaURL) && o.journal != nil {
		if err := o.journal.MarkNotified(ev.ID.String()); err != nil {
			o.logger.Error("Failed to mark %s notified: %v", still, err)
		}
	}
}

// persistSidecar keeps the raw payload next to the still so a reindex can
// recover the labels. A sidecar written by the capture command is left alone.
func (o *Orchestrator) persistSidecar(stillPath string, payload []byte) error {
	path := index.SidecarPath(stillPath)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (o *Orchestrator) record(ev *model.DetectionEvent, mode string) {
	if o.journal == nil {
		return
	}
	err := o.journal.Insert(&model.EventRecord{
		ID:        ev.ID.String(),
		Filename:  ev.StillName(),
		Channel:   ev.Camera.Channel,
		Camera:    ev.Camera.Name,
		Mode:      mode,
		Timestamp: ev.CreatedAt,
	})
	if err != nil {
		o.logger.Error("Failed to journal event %s: %v", ev.StillName(), err)
	}
}

func (o *Orchestrator) publish(ev *model.DetectionEvent, labels []string, mediaURL string) {
	if len(o.observers) == 0 {
		return
	}
	still := ev.StillName()
	update := model.TagUpdate{
		Filename: still,
		Camera:   ev.Camera.Name,
		Tags:     o.index.TagsOf(still),
		Labels:   append([]string{}, labels...),
		MediaURL: mediaURL,
		Time:     time.Now(),
	}
	for _, obs := range o.observers {
		obs.Observe(update)
	}
}
