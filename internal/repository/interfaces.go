package repository

import (
	"time"

	"camwatch/internal/dto"
	"camwatch/internal/model"
)

// EventRepository defines the interface for the detection event journal.
type EventRepository interface {
	// Create operations
	Insert(ev *model.EventRecord) error

	// Update operations
	SetLabels(id string, labels []string) error
	MarkNotified(id string) error

	// Read operations
	GetByID(id string) (*model.EventRecord, error)
	GetByFilename(filename string) (*model.EventRecord, error)
	GetAll(filter *dto.EventFilters) ([]model.EventRecord, error)
	GetTotalCount(filter *dto.EventFilters) (int, error)
	GetAllLabels() ([]string, error)

	// Delete operations
	DeleteOlderThan(cutoff time.Time) (int64, error)
}
