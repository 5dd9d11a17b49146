// Command personad serves the persona state engine over HTTP.
package main

import (
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	personacore "github.com/sigmaris/persona-core-go"
	"github.com/sigmaris/persona-core-go/httpapi"
	"github.com/sigmaris/persona-core-go/store"
)

type config struct {
	Addr            string        `env:"PERSONAD_ADDR" envDefault:":8787"`
	SQLitePath      string        `env:"PERSONAD_SQLITE_PATH"`
	RedisAddr       string        `env:"PERSONAD_REDIS_ADDR"`
	GenerateBaseURL string        `env:"PERSONAD_GENERATE_BASE_URL"`
	GenerateAPIKey  string        `env:"PERSONAD_GENERATE_API_KEY"`
	GenerateTimeout time.Duration `env:"PERSONAD_GENERATE_TIMEOUT" envDefault:"30s"`
	HistoryKeepLast int           `env:"PERSONAD_HISTORY_KEEP_LAST" envDefault:"500"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("parse env", zap.Error(err))
	}

	personaStore, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer cleanup()

	generate := buildGenerator(cfg, logger)

	engineCfg := personacore.DefaultEngineConfig()
	engineCfg.HistoryKeepLast = cfg.HistoryKeepLast
	engine := personacore.NewEngine(personaStore, generate, engineCfg)

	server := httpapi.NewServer(engine, logger)

	logger.Info("personad listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func buildStore(cfg config, logger *zap.Logger) (personacore.PersonaStore, func(), error) {
	switch {
	case cfg.SQLitePath != "":
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		return s, func() { _ = s.Close() }, nil
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info("using redis store", zap.String("addr", cfg.RedisAddr))
		return store.NewRedisStore(client), func() { _ = client.Close() }, nil
	default:
		logger.Warn("no durable store configured, using in-memory store")
		return personacore.NewInMemoryPersonaStore(), func() {}, nil
	}
}

func buildGenerator(cfg config, logger *zap.Logger) personacore.GenerateFunc {
	if cfg.GenerateBaseURL == "" {
		logger.Warn("no generation endpoint configured, using dummy generator")
		return personacore.DummyGenerator()
	}
	return personacore.NewOpenAIGenerator(personacore.OpenAIGeneratorConfig{
		BaseURL: cfg.GenerateBaseURL,
		APIKey:  cfg.GenerateAPIKey,
		Timeout: cfg.GenerateTimeout,
	})
}
