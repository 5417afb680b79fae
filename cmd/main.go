package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ndhoang/mafia-agents/internal/agents"
	"github.com/ndhoang/mafia-agents/internal/api"
	"github.com/ndhoang/mafia-agents/internal/config"
	"github.com/ndhoang/mafia-agents/internal/db"
	"github.com/ndhoang/mafia-agents/internal/rules"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg := config.FromEnv()

	policyCfg := rules.DefaultConfig()
	if cfg.MafiaWinCondition != "" {
		policyCfg.MafiaWin = cfg.MafiaWinCondition
	}
	if cfg.VillageWinCondition != "" {
		policyCfg.VillageWin = cfg.VillageWinCondition
	}
	if cfg.TieBreak != "" {
		policyCfg.TieBreak = cfg.TieBreak
	}
	policy, err := rules.New(policyCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rule policy")
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer database.Close()

	if cfg.OracleAPIKey == "" {
		log.Warn().Msg("ORACLE_API_KEY not set; agents will fall back to default decisions")
	}
	oracle := agents.NewOpenRouterClient(cfg.OracleAPIKey, cfg.OracleBaseURL, cfg.OracleModel, cfg.OracleTimeout)

	server := api.NewServer(cfg, database, oracle, policy, log.Logger)

	log.Info().Str("port", cfg.Port).Str("model", cfg.OracleModel).Msg("mafia simulation server listening")
	if err := http.ListenAndServe(":"+cfg.Port, server); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
