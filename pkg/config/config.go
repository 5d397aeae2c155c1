// Package config loads node configuration.
//
// Values come from three layers, later layers winning: built-in defaults, an
// optional YAML file, then SOLTICK_* environment variables. Command-line flags in
// cmd/soltickd are applied on top by the caller.
package config

import (
	"fmt"
	"os"

	"soltick/pkg/constants"
	"soltick/pkg/sysvar"
	"soltick/pkg/types"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataPath is the Pebble directory. Empty keeps the ledger in memory.
	DataPath string `yaml:"data_path" env:"SOLTICK_DATA_PATH"`

	// SocketPath is the unix socket the RPC server listens on. Empty disables it.
	SocketPath string `yaml:"socket_path" env:"SOLTICK_SOCKET_PATH"`

	// QUICAddr is the UDP address of the QUIC RPC listener. Empty disables it.
	QUICAddr string `yaml:"quic_addr" env:"SOLTICK_QUIC_ADDR"`

	// IdentityPath holds the hex ed25519 seed behind the QUIC certificate. Empty
	// generates a fresh identity on every start.
	IdentityPath string `yaml:"identity_path" env:"SOLTICK_IDENTITY_PATH"`

	// MaxAirdrop caps a single RequestAirdrop. Zero disables airdrops over RPC.
	MaxAirdrop uint64 `yaml:"max_airdrop" env:"SOLTICK_MAX_AIRDROP"`

	// ProgramID is the hex id the event program is registered under.
	ProgramID string `yaml:"program_id" env:"SOLTICK_PROGRAM_ID"`

	Rent RentConfig `yaml:"rent" envPrefix:"SOLTICK_RENT_"`

	// Airdrops fund wallets at genesis. From the environment they are given as
	// SOLTICK_AIRDROPS_0_PUBKEY, SOLTICK_AIRDROPS_0_LAMPORTS, and so on.
	Airdrops []Airdrop `yaml:"airdrops" envPrefix:"SOLTICK_AIRDROPS"`
}

type RentConfig struct {
	LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year" env:"LAMPORTS_PER_BYTE_YEAR"`
	ExemptionThreshold  float64 `yaml:"exemption_threshold" env:"EXEMPTION_THRESHOLD"`
	BurnPercent         uint8   `yaml:"burn_percent" env:"BURN_PERCENT"`
}

type Airdrop struct {
	Pubkey   string `yaml:"pubkey" env:"PUBKEY"`
	Lamports uint64 `yaml:"lamports" env:"LAMPORTS"`
}

func Default() Config {
	return Config{
		DataPath:   "./data",
		SocketPath: "/tmp/soltick.sock",
		ProgramID:  types.PubkeyFromSeed(constants.DefaultProgramSeed).String(),
		MaxAirdrop: constants.DefaultMaxAirdrop,
		Rent: RentConfig{
			LamportsPerByteYear: constants.DefaultLamportsPerByteYear,
			ExemptionThreshold:  constants.DefaultExemptionThreshold,
			BurnPercent:         constants.DefaultBurnPercent,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SocketPath == "" && c.QUICAddr == "" {
		return fmt.Errorf("config: at least one of socket_path and quic_addr must be set")
	}
	if _, err := c.Program(); err != nil {
		return fmt.Errorf("config: program_id: %w", err)
	}
	if c.Rent.ExemptionThreshold < 0 {
		return fmt.Errorf("config: rent.exemption_threshold must not be negative")
	}
	if c.Rent.BurnPercent > 100 {
		return fmt.Errorf("config: rent.burn_percent must be at most 100")
	}
	if _, err := c.GenesisAirdrops(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) Program() (types.Pubkey, error) {
	return types.PubkeyFromString(c.ProgramID)
}

func (c Config) RentParams() sysvar.Rent {
	return sysvar.Rent{
		LamportsPerByteYear: c.Rent.LamportsPerByteYear,
		ExemptionThreshold:  c.Rent.ExemptionThreshold,
		BurnPercent:         c.Rent.BurnPercent,
	}
}

func (c Config) GenesisAirdrops() (map[types.Pubkey]types.Lamports, error) {
	out := make(map[types.Pubkey]types.Lamports, len(c.Airdrops))
	for i, a := range c.Airdrops {
		key, err := types.PubkeyFromString(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("airdrops[%d]: %w", i, err)
		}
		out[key] += types.Lamports(a.Lamports)
	}
	return out, nil
}
