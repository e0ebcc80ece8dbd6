package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"camwatch/internal/annotation"
	"camwatch/internal/config"
	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository/sqlite"

	"github.com/google/uuid"
)

func main() {
	backfill := flag.Bool("journal", false, "Add stills missing from the event journal")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	filter, err := annotation.NewFilter(cfg.DropScore, cfg.MinScore, cfg.IgnoreAnnotations, cfg.ImportantAnnotations)
	if err != nil {
		log.Fatalf("Invalid annotation filter: %v", err)
	}

	fmt.Printf("Indexing stills in %s\n", cfg.DataDirectory)

	idx := index.New()
	n, err := idx.Rebuild(cfg.DataDirectory, func(payload []byte) []string {
		labels, res := filter.Labels(payload)
		if res.Err != nil {
			log.Printf("Unrecognized annotation payload: %v", res.Err)
		}
		return labels
	}, logger.Nop())
	if err != nil {
		log.Fatalf("Failed to index %s: %v", cfg.DataDirectory, err)
	}
	fmt.Printf("Indexed %d stills\n", n)

	printCounts(idx.Counts())

	if *backfill {
		if err := backfillJournal(cfg, idx); err != nil {
			log.Fatalf("Failed to backfill journal: %v", err)
		}
	}
}

func printCounts(counts map[string]int) {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Printf("\nTags:\n")
	for _, tag := range tags {
		fmt.Printf("   %-20s %d\n", tag, counts[tag])
	}
}

// backfillJournal inserts a journal row for every indexed still the journal
// does not know about yet.
func backfillJournal(cfg *config.Config, idx *index.Index) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := sqlite.NewEventRepository(db)

	inserted, skipped := 0, 0
	for _, still := range idx.Files(index.TagAll) {
		existing, err := repo.GetByFilename(still)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		channel, createdAt, err := model.ParseStillName(still)
		if err != nil {
			log.Printf("Skipping %s: %v", still, err)
			skipped++
			continue
		}

		camera := "D" + channel
		if cam, ok := cfg.Cameras[channel]; ok {
			camera = cam.Name
		}

		annotated := idx.Has(index.TagAnnotated, still)
		mode := model.ModeSnapshot
		if annotated {
			mode = model.ModeFull
		}

		err = repo.Insert(&model.EventRecord{
			ID:        uuid.NewString(),
			Filename:  still,
			Channel:   channel,
			Camera:    camera,
			Mode:      mode,
			Timestamp: createdAt,
			Annotated: annotated,
			Labels:    idx.Labels(still),
		})
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", still, err)
		}
		inserted++
	}

	fmt.Printf("\nJournal: %d added to %s\n", inserted, cfg.DatabasePath)
	if skipped > 0 {
		fmt.Printf("Skipped %d files with unexpected names\n", skipped)
	}
	return nil
}
