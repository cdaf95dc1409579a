package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS compound_cycles (
			cycle_id UUID PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			status VARCHAR(32) NOT NULL,
			error_detail TEXT NOT NULL DEFAULT '',
			reward_harvested NUMERIC(78, 0) NOT NULL DEFAULT 0,
			liquidity_minted NUMERIC(78, 0) NOT NULL DEFAULT 0,
			fee_paid NUMERIC(78, 0) NOT NULL DEFAULT 0,
			net_retained NUMERIC(78, 0) NOT NULL DEFAULT 0,
			forwarded NUMERIC(78, 0) NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_compound_cycles_number ON compound_cycles(cycle_number DESC);
		CREATE INDEX IF NOT EXISTS idx_compound_cycles_started_at ON compound_cycles(started_at DESC);

		CREATE TABLE IF NOT EXISTS lp_mint_events (
			event_id SERIAL PRIMARY KEY,
			strategy VARCHAR(42) NOT NULL,
			pair VARCHAR(42) NOT NULL,
			total_minted NUMERIC(78, 0) NOT NULL,
			net_after_fee NUMERIC(78, 0) NOT NULL,
			fee_amount NUMERIC(78, 0) NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_lp_mint_events_pair_time ON lp_mint_events(pair, occurred_at DESC);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply database schema: %w", err)
	}

	if err := ensureCycleCounterTable(); err != nil {
		return err
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
