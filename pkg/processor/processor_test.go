package processor

import (
	"bytes"
	"strings"
	"testing"

	"soltick/pkg/account"
	"soltick/pkg/errors"
	"soltick/pkg/instruction"
	"soltick/pkg/runtime"
	"soltick/pkg/state"
	"soltick/pkg/system"
	"soltick/pkg/sysvar"
	"soltick/pkg/types"

	"github.com/google/go-cmp/cmp"
)

var programID = types.PubkeyFromSeed("event_program_test")

// rentMinimum is the minimum balance of a 134-byte account under the default rent:
// (128 + 134) * 3480 * 2.0.
const rentMinimum = types.Lamports(1_823_520)

type harness struct {
	inv  *runtime.Invoker
	logs *bytes.Buffer
	rent *account.Info
	sys  *account.Info
}

func newHarness() *harness {
	logs := &bytes.Buffer{}
	programs := map[types.Pubkey]runtime.Program{
		system.ProgramID: system.Program{},
		programID:        Program,
	}
	return &harness{
		inv:  runtime.NewInvoker(programs, logs),
		logs: logs,
		rent: account.NewInfo(sysvar.RentID, sysvar.DefaultRent().Record(), false, false),
		sys:  account.NewInfo(system.ProgramID, system.Record(), false, false),
	}
}

func wallet(seed string, lamports types.Lamports, signer bool) *account.Info {
	return account.NewInfo(types.PubkeyFromSeed(seed), account.Record{Lamports: lamports, Owner: system.ProgramID}, signer, true)
}

// storageAccount is an empty account already assigned to the program.
func storageAccount(seed string) *account.Info {
	return account.NewInfo(types.PubkeyFromSeed(seed), account.Record{Owner: programID}, false, true)
}

func confArgs() instruction.CreateEvent {
	return instruction.CreateEvent{
		Price:        500,
		TicketsTotal: 100,
		EventName:    state.MustLabel("Conf"),
		EventAddress: state.MustLabel("HallA"),
	}
}

func createData(args instruction.CreateEvent) []byte {
	return instruction.Encode(instruction.Instruction{CreateEvent: &args})
}

func buyData() []byte {
	return instruction.Encode(instruction.Instruction{BuyTicket: &instruction.BuyTicket{}})
}

func (h *harness) create(organizer, storage *account.Info, args instruction.CreateEvent) error {
	return h.inv.Execute(programID, []*account.Info{organizer, storage, h.rent, h.sys}, createData(args))
}

func (h *harness) buy(buyer, storage, organizer *account.Info) error {
	return h.inv.Execute(programID, []*account.Info{buyer, storage, organizer, h.sys}, buyData())
}

func decodeStorage(t *testing.T, storage *account.Info) state.Event {
	t.Helper()
	event, err := state.DecodeEvent(storage.Data)
	if err != nil {
		t.Fatalf("failed to decode storage: %v", err)
	}
	return event
}

func TestCreateEvent(t *testing.T) {
	h := newHarness()
	organizer := wallet("organizer", 10_000_000, true)
	storage := storageAccount("storage")

	if err := h.create(organizer, storage, confArgs()); err != nil {
		t.Fatalf("CreateEvent failed: %v\n%s", err, h.logs)
	}

	want := state.Event{
		Organizer:    organizer.Key,
		Price:        500,
		TicketsTotal: 100,
		TicketsSold:  0,
		EventName:    state.MustLabel("Conf"),
		EventAddress: state.MustLabel("HallA"),
	}
	if diff := cmp.Diff(want, decodeStorage(t, storage)); diff != "" {
		t.Fatalf("stored event mismatch (-want +got):\n%s", diff)
	}
	if len(storage.Data) != state.Span() {
		t.Fatalf("storage is %d bytes, want %d", len(storage.Data), state.Span())
	}
	if storage.Lamports != rentMinimum {
		t.Fatalf("storage balance %d, want %d", storage.Lamports, rentMinimum)
	}
	if organizer.Lamports != 10_000_000-rentMinimum {
		t.Fatalf("organizer balance %d, want %d", organizer.Lamports, 10_000_000-rentMinimum)
	}
	if !strings.Contains(h.logs.String(), "Program log: Instruction: Create Event") {
		t.Fatalf("missing instruction log:\n%s", h.logs)
	}
}

func TestCreateEventPrefundedStorage(t *testing.T) {
	h := newHarness()
	organizer := wallet("organizer", 1_000, true)
	storage := account.NewInfo(types.PubkeyFromSeed("storage"), account.Record{Lamports: rentMinimum + 5, Owner: programID}, false, true)

	if err := h.create(organizer, storage, confArgs()); err != nil {
		t.Fatalf("CreateEvent failed: %v\n%s", err, h.logs)
	}
	if organizer.Lamports != 1_000 {
		t.Fatalf("organizer charged %d for a funded account", 1_000-organizer.Lamports)
	}
	if storage.Lamports != rentMinimum+5 {
		t.Fatalf("storage balance changed to %d", storage.Lamports)
	}
}

func TestCreateEventTwice(t *testing.T) {
	h := newHarness()
	organizer := wallet("organizer", 10_000_000, true)
	storage := storageAccount("storage")
	if err := h.create(organizer, storage, confArgs()); err != nil {
		t.Fatalf("first CreateEvent failed: %v", err)
	}
	before := append([]byte(nil), storage.Data...)

	other := wallet("other", 10_000_000, true)
	args := confArgs()
	args.Price = 1
	err := h.create(other, storage, args)
	if !errors.Is(err, errors.ErrAlreadyInitialized) {
		t.Fatalf("second CreateEvent: got %v, want ErrAlreadyInitialized", err)
	}
	if !bytes.Equal(before, storage.Data) {
		t.Fatalf("storage bytes changed by rejected CreateEvent")
	}
	if other.Lamports != 10_000_000 {
		t.Fatalf("rejected creator was charged")
	}
}

func TestCreateEventPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		accounts func(h *harness) []*account.Info
		data     []byte
		want     error
	}{
		{
			name: "organizer not signer",
			accounts: func(h *harness) []*account.Info {
				return []*account.Info{wallet("organizer", 10_000_000, false), storageAccount("storage"), h.rent, h.sys}
			},
			want: errors.ErrUnauthorized,
		},
		{
			name: "storage not owned by program",
			accounts: func(h *harness) []*account.Info {
				return []*account.Info{wallet("organizer", 10_000_000, true), wallet("storage", 0, false), h.rent, h.sys}
			},
			want: errors.ErrWrongOwner,
		},
		{
			name: "wrong rent account",
			accounts: func(h *harness) []*account.Info {
				return []*account.Info{wallet("organizer", 10_000_000, true), storageAccount("storage"), h.sys, h.sys}
			},
			want: errors.ErrInvalidArgument,
		},
		{
			name: "organizer cannot fund storage",
			accounts: func(h *harness) []*account.Info {
				return []*account.Info{wallet("organizer", 100, true), storageAccount("storage"), h.rent, h.sys}
			},
			want: errors.ErrInsufficientFunds,
		},
		{
			name: "three accounts",
			accounts: func(h *harness) []*account.Info {
				return []*account.Info{wallet("organizer", 10_000_000, true), storageAccount("storage"), h.rent}
			},
			want: errors.ErrNotEnoughAccountKeys,
		},
		{
			name: "no accounts",
			accounts: func(h *harness) []*account.Info {
				return nil
			},
			want: errors.ErrNotEnoughAccountKeys,
		},
		{
			name: "truncated payload",
			accounts: func(h *harness) []*account.Info {
				return []*account.Info{wallet("organizer", 10_000_000, true), storageAccount("storage"), h.rent, h.sys}
			},
			data: createData(confArgs())[:50],
			want: errors.ErrDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			accounts := tt.accounts(h)
			var records []account.Record
			for _, a := range accounts {
				records = append(records, a.Record())
			}
			data := tt.data
			if data == nil {
				data = createData(confArgs())
			}

			err := h.inv.Execute(programID, accounts, data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			for i, a := range accounts {
				if diff := cmp.Diff(records[i], a.Record()); diff != "" {
					t.Fatalf("account %d modified by failed instruction (-before +after):\n%s", i, diff)
				}
			}
		})
	}
}

func TestUnknownInstructionTag(t *testing.T) {
	h := newHarness()
	organizer := wallet("organizer", 10_000_000, true)
	storage := storageAccount("storage")
	err := h.inv.Execute(programID, []*account.Info{organizer, storage, h.rent, h.sys}, []byte{7})
	if !errors.Is(err, errors.ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
	if len(storage.Data) != 0 || organizer.Lamports != 10_000_000 {
		t.Fatalf("accounts modified by undecodable instruction")
	}
}

// createdEvent returns a harness with the Conf event created, plus its accounts.
func createdEvent(t *testing.T) (*harness, *account.Info, *account.Info) {
	t.Helper()
	h := newHarness()
	organizer := wallet("organizer", 10_000_000, true)
	storage := storageAccount("storage")
	if err := h.create(organizer, storage, confArgs()); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	organizer.IsSigner = false
	return h, organizer, storage
}

func TestBuyTicket(t *testing.T) {
	h, organizer, storage := createdEvent(t)
	buyer := wallet("buyer", 10_000, true)
	organizerBefore := organizer.Lamports
	before := decodeStorage(t, storage)

	if err := h.buy(buyer, storage, organizer); err != nil {
		t.Fatalf("BuyTicket failed: %v\n%s", err, h.logs)
	}

	want := before
	want.TicketsSold = 1
	if diff := cmp.Diff(want, decodeStorage(t, storage)); diff != "" {
		t.Fatalf("stored event mismatch (-want +got):\n%s", diff)
	}
	if buyer.Lamports != 10_000-500 {
		t.Fatalf("buyer balance %d, want %d", buyer.Lamports, 10_000-500)
	}
	if organizer.Lamports != organizerBefore+500 {
		t.Fatalf("organizer balance %d, want %d", organizer.Lamports, organizerBefore+500)
	}
	if !strings.Contains(h.logs.String(), "Program log: Tickets remaining: 99") {
		t.Fatalf("missing remaining log:\n%s", h.logs)
	}
}

func TestBuyTicketWrongOrganizer(t *testing.T) {
	h, organizer, storage := createdEvent(t)
	buyer := wallet("buyer", 10_000, true)
	impostor := wallet("impostor", 0, false)
	before := append([]byte(nil), storage.Data...)
	organizerBefore := organizer.Lamports

	err := h.buy(buyer, storage, impostor)
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
	if buyer.Lamports != 10_000 || impostor.Lamports != 0 || organizer.Lamports != organizerBefore {
		t.Fatalf("value moved on rejected purchase")
	}
	if !bytes.Equal(before, storage.Data) {
		t.Fatalf("storage modified on rejected purchase")
	}
}

func TestBuyTicketPreconditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness, organizer, storage *account.Info) []*account.Info
		want  error
	}{
		{
			name: "buyer not signer",
			setup: func(h *harness, organizer, storage *account.Info) []*account.Info {
				return []*account.Info{wallet("buyer", 10_000, false), storage, organizer, h.sys}
			},
			want: errors.ErrUnauthorized,
		},
		{
			name: "storage not owned by program",
			setup: func(h *harness, organizer, storage *account.Info) []*account.Info {
				fake := account.NewInfo(storage.Key, account.Record{Lamports: storage.Lamports, Owner: system.ProgramID, Data: storage.Data}, false, true)
				return []*account.Info{wallet("buyer", 10_000, true), fake, organizer, h.sys}
			},
			want: errors.ErrWrongOwner,
		},
		{
			name: "buyer cannot pay",
			setup: func(h *harness, organizer, storage *account.Info) []*account.Info {
				return []*account.Info{wallet("buyer", 499, true), storage, organizer, h.sys}
			},
			want: errors.ErrInsufficientFunds,
		},
		{
			name: "organizer read-only",
			setup: func(h *harness, organizer, storage *account.Info) []*account.Info {
				ro := account.NewInfo(organizer.Key, organizer.Record(), false, false)
				return []*account.Info{wallet("buyer", 10_000, true), storage, ro, h.sys}
			},
			want: errors.ErrPrivilegeEscalation,
		},
		{
			name: "malformed storage",
			setup: func(h *harness, organizer, storage *account.Info) []*account.Info {
				return []*account.Info{wallet("buyer", 10_000, true), storageAccount("empty"), organizer, h.sys}
			},
			want: errors.ErrDecode,
		},
		{
			name: "three accounts",
			setup: func(h *harness, organizer, storage *account.Info) []*account.Info {
				return []*account.Info{wallet("buyer", 10_000, true), storage, organizer}
			},
			want: errors.ErrNotEnoughAccountKeys,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, organizer, storage := createdEvent(t)
			accounts := tt.setup(h, organizer, storage)
			var records []account.Record
			for _, a := range accounts {
				records = append(records, a.Record())
			}

			err := h.inv.Execute(programID, accounts, buyData())
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			for i, a := range accounts {
				if diff := cmp.Diff(records[i], a.Record()); diff != "" {
					t.Fatalf("account %d modified by failed instruction (-before +after):\n%s", i, diff)
				}
			}
		})
	}
}

func TestSellOut(t *testing.T) {
	h, organizer, storage := createdEvent(t)
	buyer := wallet("buyer", 100_000, true)
	organizerBefore := organizer.Lamports

	for i := 0; i < 100; i++ {
		if err := h.buy(buyer, storage, organizer); err != nil {
			t.Fatalf("purchase %d failed: %v", i+1, err)
		}
	}
	event := decodeStorage(t, storage)
	if event.TicketsSold != 100 {
		t.Fatalf("tickets sold %d, want 100", event.TicketsSold)
	}
	if organizer.Lamports != organizerBefore+100*500 {
		t.Fatalf("organizer balance %d, want %d", organizer.Lamports, organizerBefore+100*500)
	}

	before := append([]byte(nil), storage.Data...)
	err := h.buy(buyer, storage, organizer)
	if !errors.Is(err, errors.ErrSoldOut) {
		t.Fatalf("101st purchase: got %v, want ErrSoldOut", err)
	}
	if buyer.Lamports != 100_000-100*500 {
		t.Fatalf("buyer charged for rejected purchase: balance %d", buyer.Lamports)
	}
	if !bytes.Equal(before, storage.Data) {
		t.Fatalf("storage modified by rejected purchase")
	}
	remaining, err := decodeStorage(t, storage).Remaining()
	if err != nil || remaining != 0 {
		t.Fatalf("Remaining() = %d, %v; want 0", remaining, err)
	}
}

func TestFreeEventWithoutTickets(t *testing.T) {
	h := newHarness()
	organizer := wallet("organizer", 10_000_000, true)
	storage := storageAccount("storage")
	args := confArgs()
	args.Price, args.TicketsTotal = 0, 0
	if err := h.create(organizer, storage, args); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	organizer.IsSigner = false

	err := h.buy(wallet("buyer", 10, true), storage, organizer)
	if !errors.Is(err, errors.ErrSoldOut) {
		t.Fatalf("got %v, want ErrSoldOut", err)
	}
}
