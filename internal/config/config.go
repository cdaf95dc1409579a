package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. Populated at
// startup by LoadConfig.
var (
	// Mode selects the execution mode. Only "paper" is currently supported;
	// the router refuses to start in any other mode so a misconfigured
	// deployment cannot place live trades.
	Mode string

	// PoolID is the farming-venue pool the router compounds.
	PoolID uint64

	// CycleIntervalSeconds is the delay between compounding cycles.
	CycleIntervalSeconds uint64

	// FeePercent is the integer percentage of minted liquidity taken as a
	// protocol fee on each conversion.
	FeePercent uint64
	// FeeRecipient receives the protocol fee.
	FeeRecipient string

	// MinLiquidityOut is the minimum liquidity a conversion must mint before
	// the slippage gate rolls it back.
	MinLiquidityOut string
	// MinDustAmount is the leftover threshold below which wrap corrections
	// are skipped.
	MinDustAmount string
	// ApprovalCeiling bounds the allowances granted to venues at startup.
	ApprovalCeiling string
	// RewardEmission is the reward amount the paper market emits per cycle.
	RewardEmission string

	// Database connection parameters.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Mode, err = getEnv("FARMROUTER_MODE")
	if err != nil {
		return err
	}

	PoolID, err = getEnvAsUint64("FARMROUTER_POOL_ID")
	if err != nil {
		return err
	}

	CycleIntervalSeconds, err = getEnvAsUint64("CYCLE_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	FeePercent, err = getEnvAsUint64("FEE_PERCENT")
	if err != nil {
		return err
	}
	if FeePercent > 100 {
		return errors.New("FEE_PERCENT must be between 0 and 100")
	}

	FeeRecipient, err = getEnv("FEE_RECIPIENT")
	if err != nil {
		return err
	}

	MinLiquidityOut, err = getEnv("MIN_LIQUIDITY_OUT")
	if err != nil {
		return err
	}

	MinDustAmount, err = getEnv("MIN_DUST_AMOUNT")
	if err != nil {
		return err
	}

	ApprovalCeiling, err = getEnv("APPROVAL_CEILING")
	if err != nil {
		return err
	}

	RewardEmission, err = getEnv("REWARD_EMISSION")
	if err != nil {
		return err
	}

	if err := loadDBConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Mode", Mode).
		Uint64("PoolID", PoolID).
		Uint64("CycleIntervalSeconds", CycleIntervalSeconds).
		Uint64("FeePercent", FeePercent).
		Msg("Configuration loaded successfully.")

	return nil
}

// loadDBConfig loads the PostgreSQL connection parameters.
func loadDBConfig() error {
	var err error

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}
	DBPort, err = getEnvAsInt("DB_PORT")
	if err != nil {
		return err
	}
	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}
	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	DBSSLMode, err = getEnv("DB_SSLMODE")
	if err != nil {
		return err
	}
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
