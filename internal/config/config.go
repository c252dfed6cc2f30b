package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/sim"
)

// Config holds all runtime configuration for a market run.
type Config struct {
	Port            int // 0 disables the observation server
	LogLevel        string
	TickInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Market          sim.Params
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Variables from the given .env files (or ./.env
// when none are given) are loaded first without overriding the
// environment. A missing ./.env is ignored; a named file that cannot be
// read or parsed is an error. It returns an error for any invalid value.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range", port)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	tickInterval, err := getDuration("TICK_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	if tickInterval < 0 {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %v is negative", tickInterval)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	market, err := loadMarket()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		TickInterval:    tickInterval,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
		Market:          market,
	}, nil
}

// loadMarket reads the simulation parameters on top of sim.DefaultParams
// and validates them as a whole.
func loadMarket() (sim.Params, error) {
	def := sim.DefaultParams()
	p := def
	var err error

	p.Assets = getAssets("ASSETS", def.Assets)

	if p.NumTraders, err = getInt("NUM_TRADERS", def.NumTraders); err != nil {
		return p, fmt.Errorf("invalid NUM_TRADERS: %w", err)
	}
	if p.RandomTraders, err = getInt("RANDOM_TRADERS", def.RandomTraders); err != nil {
		return p, fmt.Errorf("invalid RANDOM_TRADERS: %w", err)
	}
	if p.TrendTraders, err = getInt("TREND_TRADERS", def.TrendTraders); err != nil {
		return p, fmt.Errorf("invalid TREND_TRADERS: %w", err)
	}
	if p.WhaleTraders, err = getInt("WHALE_TRADERS", def.WhaleTraders); err != nil {
		return p, fmt.Errorf("invalid WHALE_TRADERS: %w", err)
	}
	if p.InitialCash, err = getDecimal("INITIAL_CASH", def.InitialCash); err != nil {
		return p, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	if p.InitialSupply, err = getInt64("INITIAL_SUPPLY", def.InitialSupply); err != nil {
		return p, fmt.Errorf("invalid INITIAL_SUPPLY: %w", err)
	}
	if p.MaxAllocation, err = getInt64("MAX_ALLOCATION", def.MaxAllocation); err != nil {
		return p, fmt.Errorf("invalid MAX_ALLOCATION: %w", err)
	}
	if p.InitialPriceMin, err = getFloat("INITIAL_PRICE_MIN", def.InitialPriceMin); err != nil {
		return p, fmt.Errorf("invalid INITIAL_PRICE_MIN: %w", err)
	}
	if p.InitialPriceMax, err = getFloat("INITIAL_PRICE_MAX", def.InitialPriceMax); err != nil {
		return p, fmt.Errorf("invalid INITIAL_PRICE_MAX: %w", err)
	}
	if p.Ticks, err = getInt("TICKS", def.Ticks); err != nil {
		return p, fmt.Errorf("invalid TICKS: %w", err)
	}
	if p.Seed, err = getUint64("SEED", def.Seed); err != nil {
		return p, fmt.Errorf("invalid SEED: %w", err)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid market: %w", err)
	}
	return p, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getUint64(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// getAssets splits a comma-separated list. Blank entries are kept so that
// validation reports them.
func getAssets(key string, defaultVal []domain.Asset) []domain.Asset {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]domain.Asset, len(parts))
	for i, s := range parts {
		out[i] = domain.Asset(strings.TrimSpace(s))
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
