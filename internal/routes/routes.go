package routes

import (
	"net/http"

	"camwatch/internal/config"
	"camwatch/internal/handler"
	"camwatch/internal/index"
	"camwatch/internal/logger"
	"camwatch/internal/repository"
	"camwatch/internal/service/websocket"
)

// SetupRoutes registers the browsing UI, the JSON API, the live feed and the
// log endpoints. eventRepo may be nil, in which case the journal API is not served.
func SetupRoutes(cfg *config.Config, idx *index.Index, eventRepo repository.EventRepository,
	hub *websocket.HubService, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Browsing UI
	mux.HandleFunc("/motion/", handler.MotionHandler(cfg, idx, logger))

	// API endpoints
	mux.HandleFunc("/api/tags", handler.GetTagsHandler(idx, logger))
	if eventRepo != nil {
		mux.HandleFunc("/api/events", handler.GetEventsHandler(cfg, idx, eventRepo, logger))
		mux.HandleFunc("/api/labels", handler.GetLabelsHandler(eventRepo, logger))
	}
	if hub != nil {
		mux.HandleFunc("/api/live", handler.LiveWebsocketHandler(hub, logger))
	}

	// Log endpoints
	for name, file := range map[string]string{"info": "info.log", "warning": "warning.log", "error": "error.log"} {
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	mux.HandleFunc("/", handler.RootHandler())

	return mux
}
