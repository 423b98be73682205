package signal

import (
	"encoding/json"
	"fmt"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"
)

// shortKeys maps the long event-data field names to the compact keys mobile
// connections receive. The mapping is bijective so either encoding decodes
// back to the same logical event.
var shortKeys = map[string]string{
	"userId":                 "u",
	"user":                   "ur",
	"displayName":            "dn",
	"isAdmin":                "adm",
	"isHost":                 "h",
	"videoEnabled":           "ve",
	"audioEnabled":           "ae",
	"handRaised":             "hr",
	"recordingActive":        "ra",
	"speaking":               "sp",
	"users":                  "us",
	"hostId":                 "hid",
	"settings":               "st",
	"hostVideoPriority":      "hvp",
	"allowParticipantDetach": "apd",
	"mediaType":              "mt",
	"enabled":                "en",
	"messageId":              "mid",
	"text":                   "tx",
	"timestamp":              "ts",
	"raised":                 "rd",
	"isRecording":            "rec",
	"pollId":                 "pid",
	"question":               "q",
	"options":                "op",
	"optionIndex":            "oi",
	"createdBy":              "cb",
	"endedBy":                "eb",
	"fileName":               "fn",
	"fileSize":               "fs",
	"fileType":               "ft",
	"reason":                 "rn",
	"message":                "msg",
	"locked":                 "lk",
	"from":                   "f",
}

var longKeys = func() map[string]string {
	m := make(map[string]string, len(shortKeys))
	for long, short := range shortKeys {
		m[short] = long
	}
	return m
}()

type desktopEnvelope struct {
	Type domain.EventType       `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type mobileEnvelope struct {
	Type domain.EventType       `json:"t"`
	Data map[string]interface{} `json:"d"`
}

// DesktopEncoder produces the long-key wire form.
type DesktopEncoder struct{}

func (DesktopEncoder) Encode(ev *domain.Event) ([]byte, error) {
	data, err := normalize(ev.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(desktopEnvelope{Type: ev.Type, Data: data})
}

func (DesktopEncoder) Decode(raw []byte) (*domain.Event, error) {
	var env desktopEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event frame missing type")
	}
	return domain.NewEvent(env.Type, env.Data), nil
}

// MobileEncoder produces the short-key wire form. Field names are shortened
// recursively so nested participant and settings objects shrink too.
type MobileEncoder struct{}

func (MobileEncoder) Encode(ev *domain.Event) ([]byte, error) {
	data, err := normalize(ev.Data)
	if err != nil {
		return nil, err
	}
	shortened, _ := mapKeys(data, shortKeys).(map[string]interface{})
	return json.Marshal(mobileEnvelope{Type: ev.Type, Data: shortened})
}

func (MobileEncoder) Decode(raw []byte) (*domain.Event, error) {
	var env mobileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event frame missing type")
	}
	widened, _ := mapKeys(env.Data, longKeys).(map[string]interface{})
	return domain.NewEvent(env.Type, widened), nil
}

// normalize flattens the event data into plain JSON-compatible values, so
// structs placed in the data map become key-renameable maps.
func normalize(data map[string]interface{}) (map[string]interface{}, error) {
	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("event data not serializable: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mapKeys renames map keys through the given table, recursing into nested
// maps and arrays. Unknown keys pass through untouched.
func mapKeys(v interface{}, table map[string]string) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, inner := range value {
			key := k
			if mapped, ok := table[k]; ok {
				key = mapped
			}
			out[key] = mapKeys(inner, table)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, inner := range value {
			out[i] = mapKeys(inner, table)
		}
		return out
	default:
		return v
	}
}

// Encoders returns the per-device-class encoder set the broadcaster fans out
// through.
func Encoders() map[domain.DeviceClass]ports.EventEncoder {
	return map[domain.DeviceClass]ports.EventEncoder{
		domain.DeviceDesktop: DesktopEncoder{},
		domain.DeviceMobile:  MobileEncoder{},
	}
}

// EncoderFor picks the encoder matching a device class.
func EncoderFor(class domain.DeviceClass) ports.EventEncoder {
	if class == domain.DeviceMobile {
		return MobileEncoder{}
	}
	return DesktopEncoder{}
}
