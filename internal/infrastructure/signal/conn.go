package signal

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// heartbeatEvent is the application-level keepalive mobile clients get on
// top of transport pings; some mobile network stacks swallow control frames
// while the app is backgrounded.
var heartbeatEvent = domain.NewEvent(domain.EventHeartbeat, map[string]interface{}{})

// Conn is one upgraded websocket wrapped into the domain.Client contract.
// All writes go through a single pump goroutine fed by a buffered channel:
// queuing never blocks a broadcast, and a receiver that cannot drain its
// buffer is closed rather than allowed to stall the room.
type Conn struct {
	ws      *websocket.Conn
	class   domain.DeviceClass
	encoder ports.EventEncoder

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	alive   atomic.Bool
	limiter *rate.Limiter

	mu     sync.RWMutex
	roomID domain.RoomID
	userID domain.UserID

	heartbeatInterval time.Duration
	writeTimeout      time.Duration

	// heartbeat overrides the pump's ticker so the liveness cycle can be
	// driven by hand in tests. nil means a real ticker at heartbeatInterval.
	heartbeat <-chan time.Time

	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
}

// ConnOptions carries the transport tuning for one connection.
type ConnOptions struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	SendBufferSize    int
	// MessagesPerSecond and Burst bound inbound traffic; zero disables the
	// limiter.
	MessagesPerSecond float64
	Burst             int
}

func NewConn(ws *websocket.Conn, class domain.DeviceClass, opts ConnOptions, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Conn {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	var limiter *rate.Limiter
	if opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.Burst)
	}
	c := &Conn{
		ws:                ws,
		class:             class,
		encoder:           EncoderFor(class),
		send:              make(chan []byte, opts.SendBufferSize),
		closed:            make(chan struct{}),
		limiter:           limiter,
		heartbeatInterval: opts.HeartbeatInterval,
		writeTimeout:      opts.WriteTimeout,
		metrics:           metrics,
		logger:            logger,
	}
	c.alive.Store(true)
	return c
}

func (c *Conn) UserID() domain.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Conn) RoomID() domain.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Conn) DeviceClass() domain.DeviceClass { return c.class }

func (c *Conn) Bind(roomID domain.RoomID, userID domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.userID = roomID, userID
}

func (c *Conn) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.userID = "", ""
}

func (c *Conn) Send(ev *domain.Event) error {
	data, err := c.encoder.Encode(ev)
	if err != nil {
		return err
	}
	return c.SendEncoded(data)
}

// SendEncoded queues a frame for the writer pump. A full buffer means the
// receiver has stopped draining; the connection is closed so the room's
// broadcasts stay unblocked.
func (c *Conn) SendEncoded(data []byte) error {
	select {
	case <-c.closed:
		return fmt.Errorf("connection closed")
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.Close("send buffer overflow")
		return fmt.Errorf("send buffer full")
	}
}

// MarkAlive records inbound traffic. Any message counts, not only pongs, so
// an actively signaling client never times out.
func (c *Conn) MarkAlive() {
	c.alive.Store(true)
}

func (c *Conn) Alive() bool {
	select {
	case <-c.closed:
		return false
	default:
		return c.alive.Load()
	}
}

// AllowInbound reports whether the next inbound message fits the rate limit.
func (c *Conn) AllowInbound() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Conn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason(reason)
		close(c.closed)
	})
}

func (c *Conn) closeReason(reason string) {
	deadline := time.Now().Add(c.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Debugw("failed to write close frame", "error", err)
	}
}

// Closed signals when the connection has been torn down.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// WritePump owns every write on the socket: queued frames, transport pings
// and the liveness supervision cycle. It returns when the connection closes,
// and closing the underlying socket here is what unblocks the read loop.
func (c *Conn) WritePump() {
	defer c.ws.Close()

	tick := c.heartbeat
	if tick == nil {
		ticker := time.NewTicker(c.heartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debugw("write failed", "user_id", c.UserID(), "error", err)
				c.Close("write failure")
				return
			}

		case <-tick:
			if !c.alive.Load() {
				// Two full intervals without inbound traffic.
				c.metrics.HeartbeatTimeout(c.class)
				c.logger.Infow("connection timed out",
					"user_id", c.UserID(),
					"room_id", c.RoomID(),
					"device_class", c.class,
				)
				c.writeEvent(domain.NewEvent(domain.EventConnectionTimeout, map[string]interface{}{
					"reason": "no traffic within heartbeat window",
				}))
				c.Close("heartbeat timeout")
				return
			}

			c.alive.Store(false)
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close("ping failure")
				return
			}
			if c.class == domain.DeviceMobile {
				c.writeEvent(heartbeatEvent)
			}

		case <-c.closed:
			return
		}
	}
}

// writeEvent writes directly from the pump goroutine, bypassing the queue.
func (c *Conn) writeEvent(ev *domain.Event) {
	data, err := c.encoder.Encode(ev)
	if err != nil {
		return
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debugw("direct write failed", "user_id", c.UserID(), "error", err)
	}
}
