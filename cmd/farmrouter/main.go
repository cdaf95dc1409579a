package main

import (
	"context"
	"os"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openyield/farmrouter/internal/config"
	"github.com/openyield/farmrouter/internal/engine"
	"github.com/openyield/farmrouter/internal/exchange"
	"github.com/openyield/farmrouter/internal/logger"
	"github.com/openyield/farmrouter/internal/oracle"
	"github.com/openyield/farmrouter/internal/sim"
	"github.com/openyield/farmrouter/internal/state"
	"github.com/openyield/farmrouter/internal/strategy"
	"github.com/openyield/farmrouter/internal/web"
)

// main is the entry point for the farm router.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Farm Router Starting...")

	// Initialize Database Connection (compounding journal)
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting journal web endpoint")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. Market Initialization (with Safety Switch) ---
	if config.Mode != "paper" {
		log.Fatal().Str("mode", config.Mode).Msg("FARMROUTER_MODE is not set to 'paper'. Halting to prevent accidental execution. Set FARMROUTER_MODE=paper to run.")
	}
	log.Info().Msg("Initializing paper market. No real transactions will be placed.")

	market, err := sim.SeedPaperMarket(config.PoolID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed paper market")
	}

	minLiquidityOut := mustInt(config.MinLiquidityOut, "MIN_LIQUIDITY_OUT")
	minDustAmount := mustInt(config.MinDustAmount, "MIN_DUST_AMOUNT")
	approvalCeiling := mustInt(config.ApprovalCeiling, "APPROVAL_CEILING")
	rewardEmission := mustInt(config.RewardEmission, "REWARD_EMISSION")

	// Paper oracle: one input pair liquidity unit per valuation unit.
	spot := oracle.NewFixed(sdkmath.NewIntWithDecimal(1, 18))

	// --- 3. Create Strategy and Engine with Dependency Injection ---
	log.Info().Msg("Creating strategy instance with dependency injection...")

	var eng *engine.Engine
	strategyConfig := strategy.Config{
		Self:             sim.StrategyAddress,
		StrategyTokenIn:  market.InputPair,
		StrategyTokenOut: market.OutputPair,
		RewardToken:      sim.RewardToken,
		UsePairToken0:    usesPairToken0(market),
		PoolID:           market.PoolID,
		Custodian:        sim.CustodianAddress,
		ParentStrategy:   sim.ParentAddress,
		Owner:            sim.OwnerAddress,
		TokenInInfo:      market.TokenInInfo,
		TokenOutInfo:     market.TokenOutInfo,
		Farm:             market.World.Chef,
		FarmSpender:      sim.ChefAddress,
		Oracle:           spot,
		Bank:             market.World.Bank,
		Router:           exchange.NewRouter(market.World.Bank),
		ApprovalCeiling:  approvalCeiling,
		Checkpointer:     market.World,
		MintRecorder: func(ev strategy.LiquidityMintEvent) {
			if eng != nil {
				eng.RecordMint(ev)
			}
		},
	}

	strat, err := strategy.NewSubStrategy(strategyConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy instance")
	}

	engineConfig := engine.Config{
		Strategy:        strat,
		Bank:            market.World.Bank,
		Journal:         state.PostgresJournal{},
		Parent:          sim.ParentAddress,
		FeePercent:      config.FeePercent,
		FeeTo:           sim.FeeToAddress,
		MinLiquidityOut: minLiquidityOut,
	}

	eng, err = engine.NewEngine(engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	// Seed the position: hand the strategy starting capital and wrap it.
	seedCapital := sdkmath.NewIntWithDecimal(1, 20)
	bank := market.World.Bank
	if err := bank.Transfer(sim.StableToken, sim.SeederAddress, sim.StrategyAddress, seedCapital); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund strategy with stable tokens")
	}
	if err := bank.Transfer(sim.NativeToken, sim.SeederAddress, sim.StrategyAddress, seedCapital); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund strategy with native tokens")
	}
	staked, priceAmount, err := strat.WrapAndDeposit(minDustAmount)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wrap and stake seed capital")
	}
	log.Info().
		Str("staked", staked.String()).
		Str("priceAmount", priceAmount.String()).
		Msg("Seed capital staked")

	// --- 4. Start Compounding Loop ---
	interval := time.Duration(config.CycleIntervalSeconds) * time.Second
	log.Info().Str("interval", interval.String()).Msg("Starting compounding loop")

	ctx := context.Background()

	// Paper emissions: the farming venue accrues rewards on the same cadence
	// the engine compounds on.
	go emitRewards(ctx, market, rewardEmission, interval)

	eng.RunLoop(ctx, interval)
}

// emitRewards drives the paper market's reward emissions.
func emitRewards(ctx context.Context, market *sim.PaperMarket, amount sdkmath.Int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := market.World.Chef.Accrue(market.PoolID, sim.StrategyAddress, amount); err != nil {
				log.Error().Err(err).Msg("Failed to accrue paper rewards")
			}
		}
	}
}

// usesPairToken0 reports whether the stable token sits in the token0 slot of
// the output pair. The stable side is always the reward conversion target.
func usesPairToken0(market *sim.PaperMarket) bool {
	token0, _ := exchange.SortTokens(sim.StableToken, sim.NativeToken)
	return token0 == sim.StableToken
}

// mustInt parses a decimal amount from configuration or halts.
func mustInt(s, name string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		log.Fatal().Str("value", s).Msg("Configuration value " + name + " must be a valid integer")
	}
	return v
}
