package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ClientMessage is the inbound frame shape. Mobile clients may use the
// single-letter aliases.
type ClientMessage struct {
	Type    string          `json:"type"`
	TypeAlt string          `json:"t,omitempty"`
	RoomID  domain.RoomID   `json:"roomId,omitempty"`
	To      domain.UserID   `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (m *ClientMessage) kind() string {
	if m.Type != "" {
		return m.Type
	}
	return m.TypeAlt
}

type joinPayload struct {
	UserID                 domain.UserID `json:"userId"`
	DisplayName            string        `json:"displayName"`
	IsHost                 bool          `json:"isHost"`
	IsAdmin                bool          `json:"isAdmin"`
	HostVideoPriority      *bool         `json:"hostVideoPriority,omitempty"`
	AllowParticipantDetach *bool         `json:"allowParticipantDetach,omitempty"`
}

type toggleMediaPayload struct {
	Type    string        `json:"type"`
	Enabled bool          `json:"enabled"`
	Target  domain.UserID `json:"target,omitempty"`
}

// ServerOptions carries the transport tuning shared by every connection.
type ServerOptions struct {
	DesktopHeartbeatInterval time.Duration
	MobileHeartbeatInterval  time.Duration
	WriteTimeout             time.Duration
	SendBufferSize           int
	MaxMessageSizeBytes      int64
	MessagesPerSecond        float64
	Burst                    int
}

// Server accepts websocket connections and dispatches their messages into
// the room service and the relay. One reader goroutine per connection plus
// the connection's own writer pump.
type Server struct {
	rooms   ports.RoomService
	relay   *Relay
	auth    ports.AuthService // nil when authentication is disabled
	opts    ServerOptions
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
}

func NewServer(rooms ports.RoomService, relay *Relay, auth ports.AuthService, opts ServerOptions, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Server {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Server{
		rooms:   rooms,
		relay:   relay,
		auth:    auth,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *ports.Claims
	if s.auth != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "token required", http.StatusUnauthorized)
			return
		}
		var err error
		claims, err = s.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	class := ClassifyDevice(r.Header.Get("User-Agent"))
	heartbeat := s.opts.DesktopHeartbeatInterval
	if class == domain.DeviceMobile {
		heartbeat = s.opts.MobileHeartbeatInterval
	}

	conn := NewConn(ws, class, ConnOptions{
		HeartbeatInterval: heartbeat,
		WriteTimeout:      s.opts.WriteTimeout,
		SendBufferSize:    s.opts.SendBufferSize,
		MessagesPerSecond: s.opts.MessagesPerSecond,
		Burst:             s.opts.Burst,
	}, s.metrics, s.logger)

	if s.opts.MaxMessageSizeBytes > 0 {
		ws.SetReadLimit(s.opts.MaxMessageSizeBytes)
	}
	ws.SetPongHandler(func(string) error {
		conn.MarkAlive()
		return nil
	})

	s.logger.Infow("connection accepted",
		"remote", r.RemoteAddr,
		"device_class", class,
		"heartbeat_interval", heartbeat,
		"authenticated", claims != nil,
	)

	go conn.WritePump()

	if err := conn.Send(domain.NewEvent(domain.EventConnectionEstablished, map[string]interface{}{
		"deviceClass":         string(class),
		"heartbeatIntervalMs": heartbeat.Milliseconds(),
	})); err != nil {
		s.logger.Debugw("failed to send accept ack", "error", err)
	}

	s.readLoop(conn, claims)

	// Whatever ended the read loop, the leave path runs exactly once here.
	s.rooms.Leave(conn)
	conn.Close("connection closed")
	s.logger.Infow("connection closed", "remote", r.RemoteAddr, "device_class", class)
}

func (s *Server) readLoop(conn *Conn, claims *ports.Claims) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "user_id", conn.UserID(), "error", err)
			}
			return
		}
		conn.MarkAlive()

		if !conn.AllowInbound() {
			s.sendError(conn, "rate limit exceeded")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendError(conn, "malformed message")
			continue
		}
		if err := s.dispatch(conn, claims, msg); err != nil {
			s.sendError(conn, err.Error())
		}
	}
}

func (s *Server) dispatch(conn *Conn, claims *ports.Claims, msg ClientMessage) error {
	switch kind := msg.kind(); kind {
	case "join-room":
		return s.handleJoin(conn, claims, msg)

	case "leave-room":
		s.rooms.Leave(conn)
		return nil

	case "offer", "answer", "ice-candidate":
		return s.relay.Forward(conn, kind, msg.To, msg.Payload)

	case "toggle-media":
		var p toggleMediaPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid toggle-media payload: %w", err)
		}
		target := p.Target
		if target == "" {
			target = msg.To
		}
		return s.rooms.ToggleMedia(conn, p.Type, p.Enabled, target)

	case "chat-message":
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid chat-message payload: %w", err)
		}
		return s.rooms.Chat(conn, p.Text)

	case "hand-state-changed":
		var p struct {
			Raised bool `json:"raised"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid hand-state-changed payload: %w", err)
		}
		return s.rooms.SetHandRaised(conn, p.Raised)

	case "speaking-state-changed":
		var p struct {
			Speaking bool `json:"speaking"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid speaking-state-changed payload: %w", err)
		}
		return s.rooms.SetSpeaking(conn, p.Speaking)

	case "recording-state-changed":
		var p struct {
			IsRecording bool `json:"isRecording"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid recording-state-changed payload: %w", err)
		}
		return s.rooms.SetRecording(conn, p.IsRecording)

	case "update-host-settings":
		var p struct {
			HostVideoPriority      *bool `json:"hostVideoPriority"`
			AllowParticipantDetach *bool `json:"allowParticipantDetach"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid update-host-settings payload: %w", err)
		}
		return s.rooms.UpdateHostSettings(conn, p.HostVideoPriority, p.AllowParticipantDetach)

	case "file-shared":
		var p map[string]interface{}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid file-shared payload: %w", err)
		}
		return s.rooms.ShareFile(conn, p)

	case "poll-created":
		var p struct {
			PollID   string   `json:"pollId"`
			Question string   `json:"question"`
			Options  []string `json:"options"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid poll-created payload: %w", err)
		}
		return s.rooms.CreatePoll(conn, p.PollID, p.Question, p.Options)

	case "poll-vote":
		var p struct {
			PollID      string `json:"pollId"`
			OptionIndex int    `json:"optionIndex"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid poll-vote payload: %w", err)
		}
		return s.rooms.VotePoll(conn, p.PollID, p.OptionIndex)

	case "poll-ended":
		var p struct {
			PollID string `json:"pollId"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid poll-ended payload: %w", err)
		}
		return s.rooms.EndPoll(conn, p.PollID)

	case "ping":
		return conn.Send(domain.NewEvent(domain.EventPong, nil))

	case "":
		return fmt.Errorf("message type is required")

	default:
		return fmt.Errorf("unknown message type: %s", kind)
	}
}

func (s *Server) handleJoin(conn *Conn, claims *ports.Claims, msg ClientMessage) error {
	var p joinPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid join-room payload: %w", err)
		}
	}
	if msg.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}

	req := domain.JoinRequest{
		RoomID:                 msg.RoomID,
		UserID:                 p.UserID,
		DisplayName:            p.DisplayName,
		ClaimHost:              p.IsHost,
		IsAdmin:                p.IsAdmin,
		HostVideoPriority:      p.HostVideoPriority,
		AllowParticipantDetach: p.AllowParticipantDetach,
	}
	if claims != nil {
		// A validated token is authoritative over whatever the payload says.
		req.UserID = claims.UserID
		req.IsAdmin = claims.IsAdmin
		if claims.DisplayName != "" {
			req.DisplayName = claims.DisplayName
		}
	}

	return s.rooms.Join(context.Background(), conn, req)
}

func (s *Server) sendError(conn *Conn, message string) {
	if err := conn.Send(domain.ErrorEvent(message)); err != nil {
		s.logger.Debugw("failed to send error event", "error", err)
	}
}
