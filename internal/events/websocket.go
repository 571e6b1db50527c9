package events

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Manager pushes projection changes to WebSocket clients so the UI can
// re-read projections on invalidation instead of polling.
type Manager struct {
	bus      *Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewManager creates a new WebSocket manager over the given bus.
func NewManager(bus *Bus, logger *zap.Logger) *Manager {
	return &Manager{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The browser UI is served from a different origin.
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and streams projection changes until
// the client goes away.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	id, ch := m.bus.Subscribe()
	m.logger.Debug("Projection feed subscriber connected",
		zap.String("subscriber", id.String()), zap.String("remote", r.RemoteAddr))

	// Reader only watches for close; subscribers send nothing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.bus.Unsubscribe(id)
				return
			}
		}
	}()

	go m.writePump(conn, id, ch)
}

func (m *Manager) writePump(conn *websocket.Conn, id uuid.UUID, ch <-chan ProjectionChange) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(change); err != nil {
				m.logger.Debug("Projection feed subscriber dropped",
					zap.String("subscriber", id.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
