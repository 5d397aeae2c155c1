package constants

const (
	PubkeySize    = 32
	SignatureSize = 64

	// Fixed widths of the Event display labels.
	EventNameSize    = 48
	EventAddressSize = 48

	// EventAccountSize is the encoded length of an Event:
	// organizer ‖ price ‖ tickets_total ‖ tickets_sold ‖ event_name ‖ event_address.
	EventAccountSize = PubkeySize + 2 + 2 + 2 + EventNameSize + EventAddressSize
)

// Rent defaults, matching the reference ledger.
const (
	DefaultLamportsPerByteYear uint64  = 3480
	DefaultExemptionThreshold  float64 = 2.0
	DefaultBurnPercent         uint8   = 50

	// AccountStorageOverhead is charged on top of the data length of every account.
	AccountStorageOverhead uint64 = 128
)

const (
	// MaxPermittedDataIncrease bounds how much an account may grow within one instruction.
	MaxPermittedDataIncrease = 10 * 1024

	// MaxPermittedDataLength bounds the total data length of any account.
	MaxPermittedDataLength = 10 * 1024 * 1024

	// MaxInvokeDepth is the maximum cross-program invocation depth, top level included.
	MaxInvokeDepth = 5

	// MaxTransactionSize bounds a serialized transaction accepted over RPC.
	MaxTransactionSize = 1232

	// MaxMessageSize bounds a single RPC frame.
	MaxMessageSize = 1 << 20

	// MaxEventsPerPage bounds one ListEvents response so it fits in a frame.
	MaxEventsPerPage = 1000
)

// DefaultProgramSeed derives the event program id when none is configured.
const DefaultProgramSeed = "soltick_event_program"

// DefaultMaxAirdrop caps a single RPC airdrop: 10 SOL-equivalent lamports.
const DefaultMaxAirdrop uint64 = 10_000_000_000
