package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
	"huddle/internal/core/services"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Relay priorities, derived from what the payload contributes to call setup.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// compactEnvelope is the bandwidth-lean relay frame used when either side of
// the exchange is mobile.
type compactEnvelope struct {
	Type     string          `json:"t"`
	Payload  json.RawMessage `json:"p"`
	From     domain.UserID   `json:"f"`
	Priority string          `json:"r"`
	Mobile   bool            `json:"m"`
}

// fullEnvelope is the long-key relay frame for desktop-to-desktop exchanges.
type fullEnvelope struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	From     domain.UserID   `json:"from"`
	Priority string          `json:"priority"`
}

// Relay forwards offer/answer/ICE-candidate envelopes point-to-point inside
// a room. A target that cannot be resolved is a silent drop: under normal
// churn peers race their own leave events, and retrying stale signaling data
// has no value.
type Relay struct {
	registry *services.Registry
	// dropRelayForMobile discards TURN-relayed candidates exchanged between
	// two mobile endpoints, which saves battery-hostile candidate pairs.
	dropRelayForMobile bool
	metrics            ports.MetricsRecorder
	logger             *zap.SugaredLogger
}

func NewRelay(registry *services.Registry, dropRelayForMobile bool, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Relay {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Relay{
		registry:           registry,
		dropRelayForMobile: dropRelayForMobile,
		metrics:            metrics,
		logger:             logger,
	}
}

// Forward validates and routes one signaling payload from sender to target.
// Validation failures surface to the sender; routing misses do not.
func (r *Relay) Forward(sender domain.Client, kind string, target domain.UserID, payload json.RawMessage) error {
	if target == "" {
		return fmt.Errorf("relay target is required")
	}

	roomID := sender.RoomID()
	if roomID == "" {
		return domain.ErrNotJoined
	}
	room, ok := r.registry.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	priority, err := r.classify(kind, payload)
	if err != nil {
		return err
	}

	dest, ok := room.Client(target)
	if !ok {
		r.metrics.RelayDropped("target-missing")
		return nil
	}

	if r.dropRelayForMobile &&
		kind == "ice-candidate" &&
		priority == PriorityMedium &&
		sender.DeviceClass() == domain.DeviceMobile &&
		dest.DeviceClass() == domain.DeviceMobile {
		r.metrics.RelayDropped("mobile-relay-candidate")
		return nil
	}

	senderMobile := sender.DeviceClass() == domain.DeviceMobile
	var frame []byte
	if senderMobile || dest.DeviceClass() == domain.DeviceMobile {
		frame, err = json.Marshal(compactEnvelope{
			Type:     kind,
			Payload:  payload,
			From:     sender.UserID(),
			Priority: priority,
			Mobile:   senderMobile,
		})
	} else {
		frame, err = json.Marshal(fullEnvelope{
			Type:     kind,
			Payload:  payload,
			From:     sender.UserID(),
			Priority: priority,
		})
	}
	if err != nil {
		return err
	}

	if err := dest.SendEncoded(frame); err != nil {
		r.metrics.RelayDropped("send-failed")
		r.logger.Debugw("relay delivery failed",
			"kind", kind,
			"from", sender.UserID(),
			"to", target,
			"error", err,
		)
		return nil
	}

	r.metrics.RelayRouted(kind)
	return nil
}

// classify validates the payload shape for its kind and derives the relay
// priority.
func (r *Relay) classify(kind string, payload json.RawMessage) (string, error) {
	switch kind {
	case "offer", "answer":
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(payload, &desc); err != nil {
			return "", fmt.Errorf("invalid %s payload: %w", kind, err)
		}
		if desc.SDP == "" {
			return "", fmt.Errorf("%s payload missing sdp", kind)
		}
		return PriorityCritical, nil

	case "ice-candidate":
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &cand); err != nil {
			return "", fmt.Errorf("invalid ice-candidate payload: %w", err)
		}
		return candidatePriority(cand.Candidate), nil

	default:
		return "", fmt.Errorf("unknown relay kind %q", kind)
	}
}

// candidatePriority ranks an ICE candidate by its transport type. Direct
// host routes matter most for setup speed; everything else degrades in the
// order a connectivity check would prefer it.
func candidatePriority(candidate string) string {
	switch {
	case strings.Contains(candidate, " typ host"):
		return PriorityCritical
	case strings.Contains(candidate, " typ srflx"):
		return PriorityHigh
	case strings.Contains(candidate, " typ relay"):
		return PriorityMedium
	default:
		return PriorityLow
	}
}
