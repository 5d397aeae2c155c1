package instruction

import (
	"testing"

	"soltick/pkg/errors"
	"soltick/pkg/state"
	"soltick/pkg/system"
	"soltick/pkg/sysvar"
	"soltick/pkg/types"

	"github.com/google/go-cmp/cmp"
)

func sampleCreate() CreateEvent {
	return CreateEvent{
		Price:        500,
		TicketsTotal: 100,
		EventName:    state.MustLabel("Conf"),
		EventAddress: state.MustLabel("Hall A"),
	}
}

func TestCreateEventRoundTrip(t *testing.T) {
	ce := sampleCreate()
	data := Encode(Instruction{CreateEvent: &ce})
	if len(data) != 1+2+2+48+48 {
		t.Fatalf("encoded length %d, want %d", len(data), 1+2+2+48+48)
	}
	if data[0] != byte(TagCreateEvent) {
		t.Fatalf("tag = %d, want %d", data[0], TagCreateEvent)
	}

	ix, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ix.CreateEvent == nil || ix.BuyTicket != nil {
		t.Fatalf("decoded wrong variant: %+v", ix)
	}
	if diff := cmp.Diff(ce, *ix.CreateEvent); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if ix.Tag() != TagCreateEvent {
		t.Fatalf("Tag() = %v", ix.Tag())
	}
}

func TestBuyTicketRoundTrip(t *testing.T) {
	data := Encode(Instruction{BuyTicket: &BuyTicket{}})
	if diff := cmp.Diff([]byte{1}, data); diff != "" {
		t.Fatalf("encoding mismatch (-want +got):\n%s", diff)
	}
	ix, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ix.BuyTicket == nil || ix.CreateEvent != nil {
		t.Fatalf("decoded wrong variant: %+v", ix)
	}
	if ix.Tag().String() != "BuyTicket" {
		t.Fatalf("Tag().String() = %q", ix.Tag().String())
	}
}

func TestDecodeErrors(t *testing.T) {
	ce := sampleCreate()
	full := Encode(Instruction{CreateEvent: &ce})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{2}},
		{"unknown tag with payload", append([]byte{0xff}, full[1:]...)},
		{"short create payload", full[:len(full)-1]},
		{"create tag only", []byte{0}},
		{"long create payload", append(append([]byte{}, full...), 0)},
		{"buy with payload", []byte{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, errors.ErrDecode) {
				t.Fatalf("got %v, want ErrDecode", err)
			}
		})
	}
}

func TestBuilders(t *testing.T) {
	programID := types.PubkeyFromSeed("program")
	organizer := types.PubkeyFromSeed("organizer")
	storage := types.PubkeyFromSeed("storage")
	buyer := types.PubkeyFromSeed("buyer")

	create := NewCreateEvent(programID, organizer, storage, sampleCreate())
	wantCreate := []types.AccountMeta{
		{Pubkey: organizer, IsSigner: true, IsWritable: true},
		{Pubkey: storage, IsWritable: true},
		{Pubkey: sysvar.RentID},
		{Pubkey: system.ProgramID},
	}
	if diff := cmp.Diff(wantCreate, create.Accounts); diff != "" {
		t.Fatalf("CreateEvent accounts mismatch (-want +got):\n%s", diff)
	}
	if create.ProgramID != programID {
		t.Fatalf("CreateEvent program = %s", create.ProgramID)
	}

	buy := NewBuyTicket(programID, buyer, storage, organizer)
	wantBuy := []types.AccountMeta{
		{Pubkey: buyer, IsSigner: true, IsWritable: true},
		{Pubkey: storage, IsWritable: true},
		{Pubkey: organizer, IsWritable: true},
		{Pubkey: system.ProgramID},
	}
	if diff := cmp.Diff(wantBuy, buy.Accounts); diff != "" {
		t.Fatalf("BuyTicket accounts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1}, buy.Data); diff != "" {
		t.Fatalf("BuyTicket data mismatch (-want +got):\n%s", diff)
	}
}
