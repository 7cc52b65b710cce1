package route

import (
	"net/http"

	"trackscan/internal/config"
	"trackscan/internal/handler"
	"trackscan/internal/logger"
	"trackscan/internal/middleware"
	"trackscan/internal/service"
	"trackscan/internal/service/storage"
	"trackscan/internal/service/websocket"
)

// SetupRoutes registers the pages, static file serving, API endpoints and
// wraps the mux with recovery and request logging.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, model handler.ModelStatus,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files: uploads, annotated results and css
	mux.Handle("GET "+storage.StaticURLPrefix, http.StripPrefix(storage.StaticURLPrefix, http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Pages
	mux.HandleFunc("GET /{$}", handler.HomeHandler(logger))
	mux.HandleFunc("GET /predict_page", handler.PredictPageHandler(cfg, logger))
	mux.HandleFunc("POST /predict", handler.PredictHandler(manager, cfg, logger))

	// API endpoints
	mux.HandleFunc("GET /api/predictions", handler.GetPredictionsHandler(manager, logger))
	mux.HandleFunc("DELETE /api/predictions", handler.ClearPredictionsHandler(manager, logger))
	mux.HandleFunc("GET /api/predictions/stats", handler.PredictionStatsHandler(manager, logger))
	mux.HandleFunc("GET /api/predictions/labels", handler.PredictionLabelsHandler(manager, logger))
	mux.HandleFunc("DELETE /api/predictions/{filename}", handler.DeletePredictionHandler(manager, logger))
	mux.HandleFunc("GET /api/feed", handler.FeedWebsocketHandler(hub, logger))
	mux.HandleFunc("GET /healthz", handler.HealthHandler(model, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	return middleware.LoggingMiddleware(logger, middleware.RecoverMiddleware(logger, mux))
}
