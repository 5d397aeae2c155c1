package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"soltick/pkg/constants"
	"soltick/pkg/instruction"
	"soltick/pkg/keys"
	"soltick/pkg/ledger"
	"soltick/pkg/rpc"
	"soltick/pkg/state"
	"soltick/pkg/system"
	"soltick/pkg/transaction"
	"soltick/pkg/types"
)

const usage = `usage: soltick [global flags] <command> [flags]

commands:
  keygen        write a new keypair file
  account-size  print the byte size of an event account
  airdrop       request lamports for a wallet
  balance       print an account balance
  create-event  create an event account and populate it
  buy-ticket    buy one ticket for an event
  show-event    print an event
  list-events   print every event on the ledger
  tx            print the status of a transaction

global flags:
`

type globals struct {
	socket    string
	quic      string
	nodeID    string
	programID string
}

func main() {
	log.SetFlags(0)

	var g globals
	flag.StringVar(&g.socket, "socket", "/tmp/soltick.sock", "Node unix socket")
	flag.StringVar(&g.quic, "quic", "", "Node QUIC address; takes precedence over -socket")
	flag.StringVar(&g.nodeID, "node-id", "", "Expected node identity for QUIC (hex)")
	flag.StringVar(&g.programID, "program", types.PubkeyFromSeed(constants.DefaultProgramSeed).String(), "Event program id (hex)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	case "keygen":
		err = keygen(args)
	case "account-size":
		fmt.Println(state.Span())
	case "airdrop":
		err = airdrop(g, args)
	case "balance":
		err = balance(g, args)
	case "create-event":
		err = createEvent(g, args)
	case "buy-ticket":
		err = buyTicket(g, args)
	case "show-event":
		err = showEvent(g, args)
	case "list-events":
		err = listEvents(g)
	case "tx":
		err = showTransaction(g, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func dial(g globals) (*rpc.Client, error) {
	if g.quic == "" {
		return rpc.DialUnix(g.socket)
	}
	var expected types.Pubkey
	if g.nodeID != "" {
		var err error
		if expected, err = types.PubkeyFromString(g.nodeID); err != nil {
			return nil, fmt.Errorf("node-id: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return rpc.DialQUIC(ctx, g.quic, expected)
}

func keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "", "Keypair file to create")
	fs.Parse(args)
	if *out == "" {
		return fmt.Errorf("-out is required")
	}
	key, err := keys.Generate()
	if err != nil {
		return err
	}
	if err := keys.Save(*out, key); err != nil {
		return err
	}
	fmt.Println(transaction.PubkeyOf(key))
	return nil
}

func airdrop(g globals, args []string) error {
	fs := flag.NewFlagSet("airdrop", flag.ExitOnError)
	keypair := fs.String("keypair", "", "Wallet keypair file")
	to := fs.String("to", "", "Wallet pubkey (hex), instead of -keypair")
	lamports := fs.Uint64("lamports", 1_000_000_000, "Amount to request")
	fs.Parse(args)

	key, err := resolvePubkey(*keypair, *to)
	if err != nil {
		return err
	}
	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	bal, err := c.RequestAirdrop(key, types.Lamports(*lamports))
	if err != nil {
		return err
	}
	fmt.Printf("%s balance: %d lamports\n", key, bal)
	return nil
}

func balance(g globals, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	keypair := fs.String("keypair", "", "Wallet keypair file")
	pubkey := fs.String("pubkey", "", "Account pubkey (hex), instead of -keypair")
	fs.Parse(args)

	key, err := resolvePubkey(*keypair, *pubkey)
	if err != nil {
		return err
	}
	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	rec, _, err := c.GetAccount(key)
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", rec.Lamports)
	return nil
}

// createEvent allocates a fresh storage account owned by the program and populates
// it, in one transaction so the empty account is never committed on its own.
func createEvent(g globals, args []string) error {
	fs := flag.NewFlagSet("create-event", flag.ExitOnError)
	keypair := fs.String("keypair", "", "Organizer keypair file")
	storageOut := fs.String("storage-out", "", "Where to save the new event account keypair (optional)")
	price := fs.Uint("price", 0, "Ticket price in lamports")
	tickets := fs.Uint("tickets", 0, "Number of tickets")
	name := fs.String("name", "", "Event name, at most 48 bytes")
	address := fs.String("address", "", "Event address, at most 48 bytes")
	fs.Parse(args)

	if *keypair == "" {
		return fmt.Errorf("-keypair is required")
	}
	if *price > 0xffff || *tickets > 0xffff {
		return fmt.Errorf("price and tickets must fit in 16 bits")
	}
	ceArgs := instruction.CreateEvent{Price: uint16(*price), TicketsTotal: uint16(*tickets)}
	var err error
	if ceArgs.EventName, err = state.NewLabel(*name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if ceArgs.EventAddress, err = state.NewLabel(*address); err != nil {
		return fmt.Errorf("address: %w", err)
	}

	organizer, err := keys.Load(*keypair)
	if err != nil {
		return err
	}
	storage, err := keys.Generate()
	if err != nil {
		return err
	}
	if *storageOut != "" {
		if err := keys.Save(*storageOut, storage); err != nil {
			return err
		}
	}
	programID, err := types.PubkeyFromString(g.programID)
	if err != nil {
		return fmt.Errorf("program: %w", err)
	}

	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	organizerKey, storageKey := transaction.PubkeyOf(organizer), transaction.PubkeyOf(storage)
	status, err := submit(c, []ed25519.PrivateKey{organizer, storage},
		system.CreateAccount(organizerKey, storageKey, 0, 0, programID),
		instruction.NewCreateEvent(programID, organizerKey, storageKey, ceArgs),
	)
	if err != nil {
		return err
	}
	printLogs(status)
	fmt.Printf("event: %s\n", storageKey)
	return nil
}

func buyTicket(g globals, args []string) error {
	fs := flag.NewFlagSet("buy-ticket", flag.ExitOnError)
	keypair := fs.String("keypair", "", "Buyer keypair file")
	eventKey := fs.String("event", "", "Event account pubkey (hex)")
	fs.Parse(args)

	if *keypair == "" || *eventKey == "" {
		return fmt.Errorf("-keypair and -event are required")
	}
	buyer, err := keys.Load(*keypair)
	if err != nil {
		return err
	}
	storage, err := types.PubkeyFromString(*eventKey)
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	programID, err := types.PubkeyFromString(g.programID)
	if err != nil {
		return fmt.Errorf("program: %w", err)
	}

	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	entry, err := c.GetEvent(storage)
	if err != nil {
		return err
	}
	status, err := submit(c, []ed25519.PrivateKey{buyer},
		instruction.NewBuyTicket(programID, transaction.PubkeyOf(buyer), storage, entry.Event.Organizer),
	)
	if err != nil {
		return err
	}
	printLogs(status)
	return nil
}

func showEvent(g globals, args []string) error {
	fs := flag.NewFlagSet("show-event", flag.ExitOnError)
	eventKey := fs.String("event", "", "Event account pubkey (hex)")
	fs.Parse(args)

	storage, err := types.PubkeyFromString(*eventKey)
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	entry, err := c.GetEvent(storage)
	if err != nil {
		return err
	}
	printEvent(entry)
	return nil
}

func listEvents(g globals) error {
	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.ListEvents()
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEvent(e)
		fmt.Println()
	}
	return nil
}

func showTransaction(g globals, args []string) error {
	fs := flag.NewFlagSet("tx", flag.ExitOnError)
	sigFlag := fs.String("signature", "", "Transaction signature (hex)")
	fs.Parse(args)

	sig, err := types.SignatureFromString(*sigFlag)
	if err != nil {
		return err
	}
	c, err := dial(g)
	if err != nil {
		return err
	}
	defer c.Close()

	status, found, err := c.GetTransaction(sig)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("transaction %s not found", sig)
	}
	fmt.Printf("slot: %d\n", status.Slot)
	if err := status.Failure(); err != nil {
		fmt.Printf("error: %v\n", err)
	} else {
		fmt.Println("status: ok")
	}
	printLogs(status)
	return nil
}

// submit signs the instructions against a fresh recent hash and sends them. A
// transaction that executed but failed is reported as an error after its logs.
func submit(c *rpc.Client, signers []ed25519.PrivateKey, ixs ...types.Instruction) (ledger.Status, error) {
	hash, _, err := c.GetRecentHash()
	if err != nil {
		return ledger.Status{}, err
	}
	tx, err := transaction.New(hash, signers, ixs...)
	if err != nil {
		return ledger.Status{}, err
	}
	status, err := c.SendTransaction(tx)
	if err != nil {
		return ledger.Status{}, err
	}
	fmt.Printf("signature: %s\n", tx.ID())
	if err := status.Failure(); err != nil {
		printLogs(status)
		return status, err
	}
	return status, nil
}

func resolvePubkey(keypair, hexKey string) (types.Pubkey, error) {
	switch {
	case keypair != "":
		key, err := keys.Load(keypair)
		if err != nil {
			return types.Pubkey{}, err
		}
		return transaction.PubkeyOf(key), nil
	case hexKey != "":
		return types.PubkeyFromString(hexKey)
	default:
		return types.Pubkey{}, fmt.Errorf("a keypair or pubkey is required")
	}
}

func printEvent(e rpc.EventEntry) {
	remaining, err := e.Event.Remaining()
	if err != nil {
		remaining = 0
	}
	fmt.Printf("event:     %s\n", e.Pubkey)
	fmt.Printf("name:      %s\n", e.Event.EventName)
	fmt.Printf("address:   %s\n", e.Event.EventAddress)
	fmt.Printf("organizer: %s\n", e.Event.Organizer)
	fmt.Printf("price:     %d\n", e.Event.Price)
	fmt.Printf("tickets:   %d/%d sold, %d remaining\n", e.Event.TicketsSold, e.Event.TicketsTotal, remaining)
}

func printLogs(status ledger.Status) {
	for _, line := range status.Logs {
		fmt.Println("  " + line)
	}
}
