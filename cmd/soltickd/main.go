package main

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"soltick/pkg/config"
	"soltick/pkg/keys"
	"soltick/pkg/ledger"
	"soltick/pkg/processor"
	"soltick/pkg/rpc"
	"soltick/pkg/runtime"
	"soltick/pkg/system"
	"soltick/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	dataPath := flag.String("data", "", "Ledger directory (overrides config)")
	socketPath := flag.String("socket", "", "Unix socket for RPC (overrides config)")
	quicAddr := flag.String("quic", "", "UDP address for QUIC RPC (overrides config)")
	inMemory := flag.Bool("memory", false, "Keep the ledger in memory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *inMemory {
		cfg.DataPath = ""
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *quicAddr != "" {
		cfg.QUICAddr = *quicAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}

// run opens the ledger and serves RPC until ctx is cancelled. The ledger is closed
// before run returns, on every path.
func run(ctx context.Context, cfg config.Config) error {
	programID, err := cfg.Program()
	if err != nil {
		return fmt.Errorf("invalid program id: %w", err)
	}
	airdrops, err := cfg.GenesisAirdrops()
	if err != nil {
		return fmt.Errorf("invalid airdrops: %w", err)
	}

	var tlsConfig *tls.Config
	if cfg.QUICAddr != "" {
		identity, err := loadIdentity(cfg.IdentityPath)
		if err != nil {
			return fmt.Errorf("failed to load identity: %w", err)
		}
		tlsConfig, err = rpc.ServerTLSConfig(identity)
		if err != nil {
			return fmt.Errorf("failed to build TLS config: %w", err)
		}
		log.Printf("Node identity: %s", types.Pubkey(identity.Public().(ed25519.PublicKey)))
	}

	log.Printf("soltick node")
	log.Printf("Ledger: %q, event program: %s", cfg.DataPath, programID)

	store, err := ledger.OpenStore(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	bank := ledger.NewBank(store, map[types.Pubkey]runtime.Program{
		system.ProgramID: system.Program{},
		programID:        processor.Program,
	})
	err = bank.Genesis(ledger.GenesisConfig{
		Rent:     cfg.RentParams(),
		Programs: map[types.Pubkey]string{programID: "event_program"},
		Airdrops: airdrops,
	})
	if err != nil {
		return fmt.Errorf("failed to write genesis: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := rpc.NewServer(bank, programID, types.Lamports(cfg.MaxAirdrop))
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	if cfg.SocketPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ServeUnix(ctx, cfg.SocketPath); err != nil {
				errs <- fmt.Errorf("unix RPC stopped: %w", err)
				cancel()
			}
		}()
	}
	if tlsConfig != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ServeQUIC(ctx, cfg.QUICAddr, tlsConfig); err != nil {
				errs <- fmt.Errorf("QUIC RPC stopped: %w", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	log.Printf("Shutting down")
	wg.Wait()
	if cfg.SocketPath != "" {
		os.Remove(cfg.SocketPath)
	}
	close(errs)
	return <-errs
}

func loadIdentity(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return keys.Generate()
	}
	return keys.LoadOrCreate(path)
}
