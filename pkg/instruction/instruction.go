package instruction

import (
	"soltick/pkg/errors"
	"soltick/pkg/serializer"
	"soltick/pkg/state"
	"soltick/pkg/system"
	"soltick/pkg/sysvar"
	"soltick/pkg/types"
)

// Tag is the first byte of every instruction.
type Tag uint8

const (
	TagCreateEvent Tag = 0
	TagBuyTicket   Tag = 1
)

func (t Tag) String() string {
	switch t {
	case TagCreateEvent:
		return "CreateEvent"
	case TagBuyTicket:
		return "BuyTicket"
	default:
		return "Unknown"
	}
}

// Instruction is one decoded program command. Exactly one of the fields is set.
type Instruction struct {
	CreateEvent *CreateEvent
	BuyTicket   *BuyTicket
}

type CreateEvent struct {
	Price        uint16
	TicketsTotal uint16
	EventName    state.Label
	EventAddress state.Label
}

type BuyTicket struct{}

func (ix Instruction) Tag() Tag {
	if ix.CreateEvent != nil {
		return TagCreateEvent
	}
	return TagBuyTicket
}

// Encode returns the wire form: the tag byte followed by the fixed-layout payload.
func Encode(ix Instruction) []byte {
	switch {
	case ix.CreateEvent != nil:
		return append([]byte{byte(TagCreateEvent)}, serializer.Serialize(*ix.CreateEvent)...)
	default:
		return []byte{byte(TagBuyTicket)}
	}
}

// Decode parses instruction bytes. Empty input, unknown tags, short payloads and
// trailing bytes fail with errors.ErrDecode.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, errors.Errorf(errors.ErrDecode, "empty instruction data")
	}
	payload := data[1:]

	switch Tag(data[0]) {
	case TagCreateEvent:
		var ce CreateEvent
		if err := serializer.Deserialize(payload, &ce); err != nil {
			return Instruction{}, err
		}
		return Instruction{CreateEvent: &ce}, nil
	case TagBuyTicket:
		if len(payload) != 0 {
			return Instruction{}, errors.Errorf(errors.ErrDecode, "BuyTicket carries %d unexpected bytes", len(payload))
		}
		return Instruction{BuyTicket: &BuyTicket{}}, nil
	default:
		return Instruction{}, errors.Errorf(errors.ErrDecode, "unknown instruction tag %d", data[0])
	}
}

// NewCreateEvent builds the instruction an organizer submits to populate storage.
func NewCreateEvent(programID, organizer, storage types.Pubkey, args CreateEvent) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(organizer, true),
			types.NewAccountMeta(storage, false),
			types.NewReadonlyAccountMeta(sysvar.RentID, false),
			types.NewReadonlyAccountMeta(system.ProgramID, false),
		},
		Data: Encode(Instruction{CreateEvent: &args}),
	}
}

// NewBuyTicket builds the instruction a buyer submits. The organizer receives the
// payment and so is writable.
func NewBuyTicket(programID, buyer, storage, organizer types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(buyer, true),
			types.NewAccountMeta(storage, false),
			types.NewAccountMeta(organizer, false),
			types.NewReadonlyAccountMeta(system.ProgramID, false),
		},
		Data: Encode(Instruction{BuyTicket: &BuyTicket{}}),
	}
}
