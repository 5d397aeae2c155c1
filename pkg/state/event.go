package state

import (
	"bytes"
	"fmt"

	"soltick/pkg/constants"
	"soltick/pkg/errors"
	"soltick/pkg/serializer"
	"soltick/pkg/types"
)

// Label is a fixed-width, zero-padded display string.
type Label [constants.EventNameSize]byte

// NewLabel packs s into a Label. s must fit in the label without truncation.
func NewLabel(s string) (Label, error) {
	var l Label
	if len(s) > len(l) {
		return Label{}, fmt.Errorf("label %q is %d bytes, at most %d allowed", s, len(s), len(l))
	}
	copy(l[:], s)
	return l, nil
}

// MustLabel is NewLabel for constants; it panics if s does not fit.
func MustLabel(s string) Label {
	l, err := NewLabel(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the label text with the zero padding removed.
func (l Label) String() string {
	return string(bytes.TrimRight(l[:], "\x00"))
}

// Event is the persisted record of one ticket sale. Its encoding has a fixed length
// (constants.EventAccountSize) that does not depend on field values.
type Event struct {
	Organizer    types.Pubkey
	Price        uint16
	TicketsTotal uint16
	TicketsSold  uint16
	EventName    Label
	EventAddress Label
}

// Span is the number of bytes an Event occupies in its storage account.
func Span() int {
	return serializer.Size(Event{})
}

func (e Event) Encode() []byte {
	return serializer.Serialize(e)
}

// DecodeEvent reads an Event from account data. The data must be exactly one encoded
// Event.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := serializer.Deserialize(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// IsInitialized reports whether the event has been populated by a creation.
func (e Event) IsInitialized() bool {
	return !e.Organizer.IsZero()
}

// IsSoldOut reports whether no further tickets may be sold.
func (e Event) IsSoldOut() bool {
	return e.TicketsSold >= e.TicketsTotal
}

// Remaining returns the number of unsold tickets. It fails rather than wrapping when
// more tickets were sold than exist.
func (e Event) Remaining() (uint16, error) {
	if e.TicketsSold > e.TicketsTotal {
		return 0, errors.Errorf(errors.ErrInvalidArgument, "sold %d exceeds total %d", e.TicketsSold, e.TicketsTotal)
	}
	return e.TicketsTotal - e.TicketsSold, nil
}

// Store overwrites dst with the encoded event. dst must be exactly Span() bytes.
func (e Event) Store(dst []byte) error {
	encoded := e.Encode()
	if len(dst) != len(encoded) {
		return errors.Errorf(errors.ErrInvalidArgument, "account data is %d bytes, event needs %d", len(dst), len(encoded))
	}
	copy(dst, encoded)
	return nil
}
