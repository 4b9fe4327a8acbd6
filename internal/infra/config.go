package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/pkg/quant"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the application.
// Values from the YAML file are overridden by POOLBET_* environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Pool PoolConfig `yaml:"pool"`

	Engine struct {
		InboxSize        int    `yaml:"inbox_size"`
		VerifyInvariants bool   `yaml:"verify_invariants"`
		DumpFile         string `yaml:"dump_file"`
	} `yaml:"engine"`

	Storage struct {
		Path string `yaml:"path"` // empty disables the journal
	} `yaml:"storage"`

	FreeBet struct {
		Account string `yaml:"account"` // empty disables free bets
	} `yaml:"freebet"`

	Feed struct {
		Addr       string `yaml:"addr"`
		SendBuffer int    `yaml:"send_buffer"`
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// PoolConfig mirrors core.Params in operator units. Fractions are decimals
// ("0.05" is 5%), times are seconds.
type PoolConfig struct {
	Owner       string   `yaml:"owner"`
	Oracles     []string `yaml:"oracles"`
	Maintainers []string `yaml:"maintainers"`

	TreeDepth            uint            `yaml:"tree_depth"`
	MinDeposit           int64           `yaml:"min_deposit"`
	WithdrawTimeout      int64           `yaml:"withdraw_timeout"`
	ReinforcementAbility decimal.Decimal `yaml:"reinforcement_ability"`
	DefaultReinforcement int64           `yaml:"default_reinforcement"`
	DefaultMargin        decimal.Decimal `yaml:"default_margin"`
	MaxBanksRatio        int64           `yaml:"max_banks_ratio"`
	MinBet               int64           `yaml:"min_bet"`
	SettlementDelay      int64           `yaml:"settlement_delay"`
	ResolveTimeout       int64           `yaml:"resolve_timeout"`
	DaoFee               decimal.Decimal `yaml:"dao_fee"`
	OracleFee            decimal.Decimal `yaml:"oracle_fee"`
	ClaimTimeout         int64           `yaml:"claim_timeout"`
}

// DefaultConfig returns the settings used for anything the file leaves out.
func DefaultConfig() Config {
	p := core.DefaultParams()

	var cfg Config
	cfg.App.Name = "poolbet"
	cfg.Pool = PoolConfig{
		Owner:                "owner",
		TreeDepth:            p.TreeDepth,
		MinDeposit:           p.Liquidity.MinDeposit,
		WithdrawTimeout:      p.Liquidity.WithdrawTimeout,
		ReinforcementAbility: decimal.New(p.Liquidity.ReinforcementAbility, -9),
		DefaultReinforcement: p.DefaultReinforcement,
		DefaultMargin:        decimal.New(p.DefaultMargin, -9),
		MaxBanksRatio:        p.MaxBanksRatio,
		MinBet:               p.MinBet,
		SettlementDelay:      p.SettlementDelay,
		ResolveTimeout:       p.ResolveTimeout,
		DaoFee:               decimal.New(p.DaoFee, -9),
		OracleFee:            decimal.New(p.OracleFee, -9),
		ClaimTimeout:         p.ClaimTimeout,
	}
	cfg.Engine.InboxSize = 1024
	cfg.Engine.DumpFile = "panic_dump.json"
	cfg.Feed.SendBuffer = 256
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// .env is optional
	_ = godotenv.Load()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Pool.Owner == "" {
		return &domain.ConfigError{Field: "pool.owner", Err: errors.New("owner is required")}
	}
	if c.Pool.Owner == string(domain.PoolAccount) {
		return &domain.ConfigError{Field: "pool.owner", Err: fmt.Errorf("%q is reserved", c.Pool.Owner)}
	}
	if _, err := c.PoolParams(); err != nil {
		return err
	}
	switch c.FreeBet.Account {
	case string(domain.PoolAccount), c.Pool.Owner:
		return &domain.ConfigError{Field: "freebet.account", Err: fmt.Errorf("%q is reserved", c.FreeBet.Account)}
	}
	if c.Engine.InboxSize <= 0 {
		return &domain.ConfigError{Field: "engine.inbox_size", Err: errors.New("must be positive")}
	}
	if c.Feed.Addr != "" && c.Feed.SendBuffer <= 0 {
		return &domain.ConfigError{Field: "feed.send_buffer", Err: errors.New("must be positive")}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// PoolParams converts the pool section into core parameters.
func (c *Config) PoolParams() (core.Params, error) {
	pc := c.Pool
	p := core.Params{
		TreeDepth: pc.TreeDepth,
		Liquidity: core.DefaultParams().Liquidity,

		DefaultReinforcement: pc.DefaultReinforcement,
		MaxBanksRatio:        pc.MaxBanksRatio,
		MinBet:               pc.MinBet,
		SettlementDelay:      pc.SettlementDelay,
		ResolveTimeout:       pc.ResolveTimeout,
		ClaimTimeout:         pc.ClaimTimeout,
	}
	p.Liquidity.MinDeposit = pc.MinDeposit
	p.Liquidity.WithdrawTimeout = pc.WithdrawTimeout

	fractions := []struct {
		field string
		value decimal.Decimal
		out   *int64
	}{
		{"pool.reinforcement_ability", pc.ReinforcementAbility, &p.Liquidity.ReinforcementAbility},
		{"pool.default_margin", pc.DefaultMargin, &p.DefaultMargin},
		{"pool.dao_fee", pc.DaoFee, &p.DaoFee},
		{"pool.oracle_fee", pc.OracleFee, &p.OracleFee},
	}
	for _, f := range fractions {
		v, err := quant.ParseFixed(f.value.String())
		if err != nil {
			return core.Params{}, &domain.ConfigError{Field: f.field, Err: err}
		}
		*f.out = v
	}

	if err := p.Validate(); err != nil {
		return core.Params{}, &domain.ConfigError{Field: "pool", Err: err}
	}
	return p, nil
}

// overrideWithEnv replaces settings with POOLBET_* variables when they are set.
func overrideWithEnv(cfg *Config) {
	setStr(&cfg.Pool.Owner, "POOLBET_OWNER")
	setList(&cfg.Pool.Oracles, "POOLBET_ORACLES")
	setList(&cfg.Pool.Maintainers, "POOLBET_MAINTAINERS")
	setStr(&cfg.Storage.Path, "POOLBET_STORAGE_PATH")
	setStr(&cfg.FreeBet.Account, "POOLBET_FREEBET_ACCOUNT")
	setStr(&cfg.Feed.Addr, "POOLBET_FEED_ADDR")
	setStr(&cfg.Logging.Level, "POOLBET_LOG_LEVEL")
	setStr(&cfg.Logging.Dir, "POOLBET_LOG_DIR")
	setBool(&cfg.Engine.VerifyInvariants, "POOLBET_VERIFY_INVARIANTS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
