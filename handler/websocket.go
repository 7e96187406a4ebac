package handler

import (
	"sync"
	"time"

	"restaurant_order/constants"
	"restaurant_order/model"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// wsConnection adapts a websocket to realtime.Connection. Writes are serialized
// because the bus pump and Close may race.
type wsConnection struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConnection) Send(env model.Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(env)
}

// Close is a server initiated close, which dashboards do not reconnect after.
func (w *wsConnection) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// StaffFeed streams the restaurant's envelopes to a staff dashboard until it disconnects.
func (h *Handler) StaffFeed(c *websocket.Conn) {
	staff, ok := c.Locals(constants.LOCAL_STAFF).(model.StaffClaim)
	if !ok {
		return
	}
	log := h.Log.With(zap.String("restaurant_id", staff.RestaurantId), zap.Uint("account_id", staff.AccountId))

	unsubscribe, err := h.Bus.Subscribe(staff.RestaurantId, &wsConnection{conn: c})
	if err != nil {
		log.Warn("staff feed rejected", zap.Error(err))
		return
	}
	defer unsubscribe()
	log.Info("staff feed connected")

	// the dashboard only listens; reading detects disconnects
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			log.Info("staff feed disconnected", zap.Error(err))
			return
		}
	}
}
