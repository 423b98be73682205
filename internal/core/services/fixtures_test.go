package services

import (
	"encoding/json"
	"sync"
	"testing"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// fakeClient records everything queued for it instead of writing to a socket.
type fakeClient struct {
	mu          sync.Mutex
	userID      domain.UserID
	roomID      domain.RoomID
	class       domain.DeviceClass
	alive       bool
	closed      bool
	closeReason string
	events      []*domain.Event
	frames      [][]byte
}

func newFakeClient(class domain.DeviceClass) *fakeClient {
	return &fakeClient{class: class, alive: true}
}

func (c *fakeClient) UserID() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *fakeClient) RoomID() domain.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *fakeClient) DeviceClass() domain.DeviceClass { return c.class }

func (c *fakeClient) Bind(roomID domain.RoomID, userID domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.userID = roomID, userID
}

func (c *fakeClient) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.userID = "", ""
}

func (c *fakeClient) Send(ev *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeClient) SendEncoded(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeClient) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeClient) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeReason = reason
}

func (c *fakeClient) setAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// received decodes the frames queued for this client back into events.
func (c *fakeClient) received(t *testing.T) []*domain.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*domain.Event, 0, len(c.frames))
	for _, frame := range c.frames {
		var wire struct {
			Type domain.EventType       `json:"type"`
			Data map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(frame, &wire); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		out = append(out, &domain.Event{Type: wire.Type, Data: wire.Data})
	}
	return out
}

func (c *fakeClient) receivedTypes(t *testing.T) []domain.EventType {
	t.Helper()
	events := c.received(t)
	types := make([]domain.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// plainEncoder is a minimal JSON codec used where encoding itself is not
// under test.
type plainEncoder struct{}

func (plainEncoder) Encode(ev *domain.Event) ([]byte, error) {
	return json.Marshal(struct {
		Type domain.EventType       `json:"type"`
		Data map[string]interface{} `json:"data"`
	}{ev.Type, ev.Data})
}

func (plainEncoder) Decode(data []byte) (*domain.Event, error) {
	var wire struct {
		Type domain.EventType       `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	return &domain.Event{Type: wire.Type, Data: wire.Data}, nil
}

func testLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

func testBroadcaster(t *testing.T) *Broadcaster {
	return NewBroadcaster(map[domain.DeviceClass]ports.EventEncoder{
		domain.DeviceDesktop: plainEncoder{},
		domain.DeviceMobile:  plainEncoder{},
	}, nil, testLogger(t))
}

func testRoomService(t *testing.T) (ports.RoomService, *Registry) {
	registry := NewRegistry(nil)
	svc := NewRoomService(registry, testBroadcaster(t), nil, nil, nil, testLogger(t))
	return svc, registry
}
