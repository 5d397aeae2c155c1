package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"soltick/pkg/config"
	"soltick/pkg/ledger"
)

func TestRunClosesLedgerOnFailure(t *testing.T) {
	badIdentity := filepath.Join(t.TempDir(), "identity.key")
	if err := os.WriteFile(badIdentity, []byte("not hex"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tests := []struct {
		name  string
		setup func(cfg *config.Config)
		want  string
	}{
		{
			name: "socket cannot be bound",
			setup: func(cfg *config.Config) {
				cfg.SocketPath = filepath.Join(t.TempDir(), "missing", "rpc.sock")
				cfg.QUICAddr = ""
			},
			want: "unix RPC stopped",
		},
		{
			name: "identity cannot be loaded",
			setup: func(cfg *config.Config) {
				cfg.QUICAddr = "127.0.0.1:0"
				cfg.IdentityPath = badIdentity
			},
			want: "failed to load identity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.DataPath = t.TempDir()
			tt.setup(&cfg)

			err := run(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error mentioning %q", err, tt.want)
			}

			store, err := ledger.OpenStore(cfg.DataPath)
			if err != nil {
				t.Fatalf("ledger still locked after run returned: %v", err)
			}
			store.Close()
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.DataPath = t.TempDir()
	dir, err := os.MkdirTemp("", "soltickd")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)
	cfg.SocketPath = filepath.Join(dir, "rpc.sock")
	cfg.QUICAddr = ""

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, cfg); err != nil {
		t.Fatalf("run returned %v", err)
	}
	if _, err := os.Stat(cfg.SocketPath); !os.IsNotExist(err) {
		t.Fatalf("socket left behind: %v", err)
	}
	store, err := ledger.OpenStore(cfg.DataPath)
	if err != nil {
		t.Fatalf("OpenStore after shutdown failed: %v", err)
	}
	store.Close()
}
