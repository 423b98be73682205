package ports

import "huddle/internal/core/domain"

// EventEncoder turns an event into its wire form for one device class. The
// two implementations (desktop, mobile) must be inverses of each other at the
// logical-event level: decoding either encoding yields the same event.
type EventEncoder interface {
	Encode(ev *domain.Event) ([]byte, error)
	Decode(data []byte) (*domain.Event, error)
}
