package handler

import (
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"camwatch/internal/config"
	"camwatch/internal/dto"
	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/model"
)

// RootHandler redirects / to the motion UI and 404s anything else not routed.
func RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/motion/", http.StatusTemporaryRedirect)
	}
}

// MotionHandler serves everything under /motion/: the live-stream table, the
// stills browser and the still images themselves.
func MotionHandler(cfg *config.Config, idx *index.Index, logger *logger.Logger) http.HandlerFunc {
	live := LiveStreamHandler(cfg, logger)
	stills := StillsHandler(cfg, idx, logger)
	media := StillImageHandler(cfg)

	return func(w http.ResponseWriter, r *http.Request) {
		switch path := r.URL.Path; {
		case path == "/motion/":
			live(w, r)
		case path == "/motion/still.html":
			stills(w, r)
		case strings.HasSuffix(path, index.StillExt):
			media(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// LiveStreamHandler lists cameras that have a preview HLS stream.
func LiveStreamHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows := liveRows(cfg.Cameras)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := liveTemplate.Execute(w, rows); err != nil {
			logger.Error("Error rendering live stream page: %v", err)
		}
	}
}

func liveRows(cameras map[string]model.Camera) []liveRow {
	var rows []liveRow
	for _, cam := range cameras {
		preview, ok := cam.PreviewStream()
		if !ok {
			continue
		}
		row := liveRow{Channel: cam.Channel, Name: cam.Name, Preview: preview}
		for variant, url := range cam.Streams {
			if variant == "Preview" {
				continue
			}
			row.Variants = append(row.Variants, streamLink{Name: variant, URL: url})
		}
		sort.Slice(row.Variants, func(i, j int) bool { return row.Variants[i].Name < row.Variants[j].Name })
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return channelLess(rows[i].Channel, rows[j].Channel) })
	return rows
}

func channelLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ai < bi
}

// StillsHandler lists the tags with their counts and the stills carrying the
// selected tag (default "all"), newest first.
func StillsHandler(cfg *config.Config, idx *index.Index, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		selected := r.URL.Query().Get("tag")
		if selected == "" {
			selected = index.TagAll
		}

		page := stillsPage{Tags: sortedCounts(idx.Counts())}
		for _, still := range idx.Files(selected) {
			entry := stillEntry{
				Filename: still,
				Labels:   strings.Join(idx.Labels(still), ", "),
			}
			if idx.Has(index.TagAnnotated, still) {
				entry.VideoURL = VideoURL(cfg.UploadURLPrefix, still)
			}
			page.Stills = append(page.Stills, entry)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := stillsTemplate.Execute(w, page); err != nil {
			logger.Error("Error rendering stills page: %v", err)
		}
	}
}

// VideoURL is the uploaded clip belonging to a still.
func VideoURL(prefix, still string) string {
	return prefix + strings.TrimSuffix(still, index.StillExt) + ".mp4"
}

func sortedCounts(counts map[string]int) []dto.TagCount {
	views := make([]dto.TagCount, 0, len(counts))
	for tag, n := range counts {
		views = append(views, dto.TagCount{Tag: tag, Count: n})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Tag < views[j].Tag })
	return views
}

// StillImageHandler serves a still from the data directory. Requests with a
// query string or a parent reference are refused.
func StillImageHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" || strings.Contains(r.URL.Path, "..") || !strings.HasSuffix(r.URL.Path, index.StillExt) {
			http.NotFound(w, r)
			return
		}

		filePath := filepath.Join(cfg.DataDirectory, filepath.Base(r.URL.Path))
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, filePath)
	}
}
