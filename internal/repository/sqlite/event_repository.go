package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"camwatch/internal/dto"
	"camwatch/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert adds a new event record together with its labels.
func (r *EventRepository) Insert(ev *model.EventRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO events (id, filename, channel, camera, mode, timestamp, annotated, notified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Filename, ev.Channel, ev.Camera, ev.Mode, ev.Timestamp.UTC(), boolToInt(ev.Annotated), boolToInt(ev.Notified))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := insertLabels(tx, ev.ID, ev.Labels); err != nil {
		return err
	}

	return tx.Commit()
}

// SetLabels replaces the labels of an event and marks it annotated.
func (r *EventRepository) SetLabels(id string, labels []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE events SET annotated = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s not found", id)
	}

	if _, err := tx.Exec(`DELETE FROM event_labels WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete labels: %w", err)
	}
	if err := insertLabels(tx, id, labels); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkNotified flags an event as having triggered a notification.
func (r *EventRepository) MarkNotified(id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, err := r.db.conn.Exec(`UPDATE events SET notified = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark event notified: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID.
func (r *EventRepository) GetByID(id string) (*model.EventRecord, error) {
	return r.getOne(`id = ?`, id)
}

// GetByFilename retrieves an event by its still filename.
func (r *EventRepository) GetByFilename(filename string) (*model.EventRecord, error) {
	return r.getOne(`filename = ?`, filename)
}

func (r *EventRepository) getOne(where string, arg interface{}) (*model.EventRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row := r.db.conn.QueryRow(`
		SELECT id, filename, channel, camera, mode, timestamp, annotated, notified
		FROM events WHERE `+where, arg)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	if ev.Labels, err = r.labels(ev.ID); err != nil {
		return nil, err
	}
	return ev, nil
}

// GetAll retrieves events based on filter criteria, newest first.
func (r *EventRepository) GetAll(filter *dto.EventFilters) ([]model.EventRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT DISTINCT e.id, e.filename, e.channel, e.camera, e.mode, e.timestamp, e.annotated, e.notified
		FROM events e
		LEFT JOIN event_labels l ON e.id = l.event_id
	` + where + " ORDER BY e.timestamp DESC, e.filename DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []model.EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	for i := range events {
		if events[i].Labels, err = r.labels(events[i].ID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// GetTotalCount returns the total count of events matching the filter.
func (r *EventRepository) GetTotalCount(filter *dto.EventFilters) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT COUNT(DISTINCT e.id)
		FROM events e
		LEFT JOIN event_labels l ON e.id = l.event_id
	` + where

	var count int
	if err := r.db.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// GetAllLabels returns every distinct label ever recorded.
func (r *EventRepository) GetAllLabels() ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rows, err := r.db.conn.Query(`SELECT DISTINCT label FROM event_labels ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// DeleteOlderThan removes events recorded before cutoff.
func (r *EventRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	result, err := r.db.conn.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected()
}

// labels must be called with the lock held.
func (r *EventRepository) labels(id string) ([]string, error) {
	rows, err := r.db.conn.Query(`SELECT label FROM event_labels WHERE event_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*model.EventRecord, error) {
	var ev model.EventRecord
	var annotated, notified int
	if err := s.Scan(&ev.ID, &ev.Filename, &ev.Channel, &ev.Camera, &ev.Mode, &ev.Timestamp, &annotated, &notified); err != nil {
		return nil, err
	}
	ev.Annotated = annotated == 1
	ev.Notified = notified == 1
	return &ev, nil
}

func insertLabels(tx *sql.Tx, id string, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO event_labels (event_id, position, label) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, label := range labels {
		if _, err := stmt.Exec(id, i, label); err != nil {
			return fmt.Errorf("failed to insert label: %w", err)
		}
	}
	return nil
}

func buildWhere(filter *dto.EventFilters) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := []interface{}{}

	if filter.Camera != "" {
		clauses = append(clauses, "e.camera = ?")
		args = append(args, filter.Camera)
	}
	if filter.Label != "" {
		clauses = append(clauses, "l.label = ?")
		args = append(args, filter.Label)
	}
	if filter.Mode != "" {
		clauses = append(clauses, "e.mode = ?")
		args = append(args, filter.Mode)
	}
	if !filter.DateAfter.IsZero() {
		clauses = append(clauses, "e.timestamp >= ?")
		args = append(args, filter.DateAfter.UTC())
	}
	if !filter.DateBefore.IsZero() {
		clauses = append(clauses, "e.timestamp < ?")
		args = append(args, filter.DateBefore.UTC())
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
