package broadcast

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"memedex/internal/logging"
)

const (
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	clientBuffer   = 64
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to loopback; browser sessions connect same-host.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket connections that stream hub
// events. Each connection is an independent subscriber.
func Handler(hub *Hub, logger *slog.Logger) http.Handler {
	logger = logging.WithComponent(logger, "broadcast")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", logging.Error(err))
			return
		}
		sub := hub.Subscribe(clientBuffer)
		go readLoop(conn, hub, sub)
		writeLoop(conn, sub, logger)
	})
}

// readLoop discards inbound frames and tears the subscription down when the
// peer goes away.
func readLoop(conn *websocket.Conn, hub *Hub, sub *Subscriber) {
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unsubscribe(sub)
			_ = conn.Close()
			return
		}
	}
}

func writeLoop(conn *websocket.Conn, sub *Subscriber, logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug("websocket write failed", logging.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
