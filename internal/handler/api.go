package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/dto"
	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/repository"
)

// Pagination bounds for the event journal API.
const (
	defaultPageSize = 24
	maxPageSize     = 200
	maxPage         = 1 << 20
)

type tagsResponse struct {
	Tags   []dto.TagCount      `json:"tags"`
	Tag    string              `json:"tag,omitempty"`
	Files  []string            `json:"files,omitempty"`
	Labels map[string][]string `json:"labels,omitempty"`
}

// GetTagsHandler returns the tag counts and, when ?tag= is given, the files
// carrying that tag (newest first) with their labels.
func GetTagsHandler(idx *index.Index, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := tagsResponse{Tags: sortedCounts(idx.Counts())}

		if tag := r.URL.Query().Get("tag"); tag != "" {
			resp.Tag = tag
			resp.Files = idx.Files(tag)
			resp.Labels = make(map[string][]string, len(resp.Files))
			for _, f := range resp.Files {
				if labels := idx.Labels(f); len(labels) > 0 {
					resp.Labels[f] = labels
				}
			}
		}

		writeJSON(w, resp, logger)
	}
}

// GetEventsHandler returns a filtered, paginated page of the event journal.
func GetEventsHandler(cfg *config.Config, idx *index.Index, eventRepo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := min(atoiDefault(q.Get("page"), 1), maxPage)
		limit := min(atoiDefault(q.Get("limit"), defaultPageSize), maxPageSize)

		filter := &dto.EventFilters{
			Camera:     q.Get("camera"),
			Label:      q.Get("label"),
			Mode:       q.Get("mode"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		events, err := eventRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying events from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := eventRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting events: %v", err)
			totalCount = len(events)
		}

		infos := make([]dto.EventInfo, 0, len(events))
		for _, ev := range events {
			info := dto.EventInfo{
				Filename:  ev.Filename,
				Camera:    ev.Camera,
				Mode:      ev.Mode,
				Date:      ev.Timestamp.Local(),
				TimeOfDay: ev.Timestamp.Local(),
				Labels:    ev.Labels,
				Tags:      idx.TagsOf(ev.Filename),
				Notified:  ev.Notified,
			}
			if ev.Annotated {
				info.VideoURL = VideoURL(cfg.UploadURLPrefix, ev.Filename)
			}
			infos = append(infos, info)
		}

		writeJSON(w, dto.EventsData{
			Events:      infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetLabelsHandler returns every label ever recorded in the journal.
func GetLabelsHandler(eventRepo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := eventRepo.GetAllLabels()
		if err != nil {
			logger.Error("Error querying labels: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if labels == nil {
			labels = []string{}
		}
		writeJSON(w, labels, logger)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date in the HTML input format "2006-01-02", local time.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
