package realtime

import (
	"context"
	"sync"
	"time"

	"restaurant_order/model"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

// DashboardClient keeps a staff dashboard attached to the live order feed.
// Every (re)connect triggers refresh because missed envelopes are never replayed.
type DashboardClient struct {
	url     string
	dialer  *websocket.Dialer
	refresh func(ctx context.Context) error
	handle  func(model.Envelope)
	rc      *Reconnector
	log     *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewDashboardClient(url string, refresh func(ctx context.Context) error, handle func(model.Envelope), opts ReconnectOptions, log *zap.Logger) *DashboardClient {
	c := &DashboardClient{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		refresh: refresh,
		handle:  handle,
		log:     log,
	}
	c.rc = NewReconnector(c.dial, c.connected, opts, log)
	return c
}

func (c *DashboardClient) State() State { return c.rc.State() }

// Run connects and blocks until ctx is done.
func (c *DashboardClient) Run(ctx context.Context) {
	c.rc.Start(ctx)
	<-ctx.Done()
	c.rc.Stop()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *DashboardClient) dial(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *DashboardClient) connected(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	go c.readLoop(ctx, conn)
	return c.refresh(ctx)
}

func (c *DashboardClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env model.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			serverClosed := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if !serverClosed {
				c.log.Warn("dashboard connection dropped", zap.Error(err))
			}
			conn.Close()
			c.rc.Dropped(ctx, serverClosed)
			return
		}
		c.handle(env)
	}
}
