package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/logger"
	"camwatch/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		SMTPAddress:       "127.0.0.1:0",
		HTTPAddress:       "127.0.0.1:0",
		DataDirectory:     filepath.Join(dir, "data"),
		LogDirectory:      filepath.Join(dir, "logs"),
		DatabasePath:      filepath.Join(dir, "db", "events.db"),
		OccupancyFile:     filepath.Join(dir, "occupancy"),
		CaptureCommand:    "true",
		UploadCommand:     "true",
		CommandTimeout:    time.Minute,
		DropScore:         0.45,
		MinScore:          0.7,
		RetentionDays:     30,
		RetentionInterval: time.Hour,
		Cameras: map[string]model.Camera{
			"2": {Channel: "2", Name: "Garden", HiRes: "rtsp://cam/hi", LoRes: "rtsp://cam/lo"},
		},
	}
}

func TestApp_RunStopsRetentionBeforeClosingDatabase(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
	}{
		{"cancelled immediately", 0},
		{"cancelled after startup", 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			log, err := logger.NewLogger(cfg.LogDirectory)
			if err != nil {
				t.Fatalf("Failed to create logger: %v", err)
			}
			defer log.Close()

			a, err := NewApp(cfg, log)
			if err != nil {
				t.Fatalf("NewApp failed: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), tt.delay)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- a.Run(ctx) }()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("Run returned %v", err)
				}
			case <-time.After(drainTimeout + httpShutdownTimeout):
				t.Fatal("Run did not return after cancellation")
			}

			select {
			case <-a.retentionDone:
			default:
				t.Error("retention loop still running after Run returned")
			}

			data, err := os.ReadFile(filepath.Join(cfg.LogDirectory, logger.ErrorFile))
			if err != nil {
				t.Fatalf("Failed to read error log: %v", err)
			}
			if strings.Contains(string(data), "database is closed") {
				t.Errorf("error log reports a closed database:\n%s", data)
			}
		})
	}
}
