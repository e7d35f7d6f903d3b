package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
	"github.com/dexflow/dexbot/internal/infrastructure/logger"
	"github.com/dexflow/dexbot/internal/infrastructure/marketdata"
	"github.com/dexflow/dexbot/internal/infrastructure/storage"
	"github.com/dexflow/dexbot/internal/infrastructure/venue"
	"github.com/dexflow/dexbot/internal/infrastructure/wallet"
	"github.com/dexflow/dexbot/internal/usecase"
	"github.com/dexflow/dexbot/internal/web"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bot            domain.BotConfig `yaml:"bot"`
	InitialBalance float64          `yaml:"initial_balance"`
	Simulation     bool             `yaml:"simulation"`
	Autostart      bool             `yaml:"autostart"`
	MarketData     struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"market_data"`
	Venues  []venue.Config `yaml:"venues"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{
		Bot:            domain.DefaultBotConfig(),
		InitialBalance: 10000,
	}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	// Secrets come from the environment; .env is optional.
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Bot.Validate(); err != nil {
		fmt.Printf("Invalid bot configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "bot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	var md domain.MarketData
	if cfg.Simulation {
		log.Warn("Simulation mode enabled: trading on synthetic prices")
		md = marketdata.NewSyntheticProvider(time.Now().UnixNano())
	} else {
		client := marketdata.NewBinanceClient(cfg.MarketData.RESTEndpoint, cfg.MarketData.WSEndpoint, log)
		if err := client.Subscribe(cfg.Bot.TradingPairs); err != nil {
			// The REST fallback still serves prices; the stream is a warm cache.
			log.Warn("Price stream unavailable", zap.Error(err))
		}
		defer client.Close()
		md = client
	}

	secret := os.Getenv("WALLET_SECRET")
	if secret == "" {
		log.Fatal("WALLET_SECRET is not set")
	}
	signer, err := wallet.NewLocalSigner(secret)
	if err != nil {
		log.Fatal("Failed to init signer", zap.Error(err))
	}

	aggregator := usecase.NewDEXAggregator(venue.FromConfigs(cfg.Venues), log)
	engine := usecase.NewTradingEngine(cfg.Bot, cfg.InitialBalance, md, aggregator, signer, store, log)

	if cfg.Autostart {
		if err := engine.Start(); err != nil {
			log.Fatal("Failed to start trading engine", zap.Error(err))
		}
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, engine, aggregator, md, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
