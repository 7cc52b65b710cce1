package handler

import (
	"net/http"
	"time"

	"trackscan/internal/logger"
	"trackscan/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// feedReadLimit caps viewer messages; the feed is write-only.
const feedReadLimit = 512

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeedWebsocketHandler registers viewers with the hub so they receive an
// event for every finished prediction. Incoming messages are ignored.
func FeedWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if !hub.Register(connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(connection)

		connection.SetReadLimit(feedReadLimit)
		connection.SetReadDeadline(time.Now().Add(websocket.PongWait))
		connection.SetPongHandler(func(string) error {
			return connection.SetReadDeadline(time.Now().Add(websocket.PongWait))
		})

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
