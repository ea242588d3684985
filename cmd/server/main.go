package main

import (
	"context"
	"net/http"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"lyra-care/internal/config"
	"lyra-care/internal/core"
	httpserver "lyra-care/internal/http"
	"lyra-care/internal/ingest"
	"lyra-care/internal/llm"
	"lyra-care/internal/logger"
	"lyra-care/internal/session"
)

// sessionSweepInterval is how often idle browser sessions are expired.
const sessionSweepInterval = 5 * time.Minute

var cli struct {
	Config   string `help:"Path to a YAML config file" type:"path" default:""`
	Addr     string `help:"Listen address, overrides server.addr and PORT" default:""`
	LogLevel string `help:"Log level, overrides logger.level and LOG_LEVEL" default:""`
}

func main() {
	_ = kong.Parse(&cli,
		kong.Name("lyra"),
		kong.Description("Lyra care assistant web relay."),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if cli.Addr != "" {
		cfg.Server.Addr = cli.Addr
	}
	if cli.LogLevel != "" {
		cfg.Logger.Level = cli.LogLevel
	}
	logger.Init(cfg.Logger.Level)
	log := logger.For("main")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	platform := llm.NewOpenAIClient(llm.Options{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Model:        cfg.OpenAI.Model,
		AssistantID:  cfg.OpenAI.AssistantID,
		PollInterval: cfg.OpenAI.PollInterval,
	})
	chatService := core.NewChatService(platform, core.Practice{
		ProviderName:    cfg.Practice.ProviderName,
		PracticeName:    cfg.Practice.PracticeName,
		CareManagerName: cfg.Practice.CareManagerName,
	}, cfg.OpenAI.ReplyTimeout)

	ingestor := ingest.NewIngestor(cfg.Upload.Dir)
	ingestor.Tabular = cfg.Upload.Tabular
	ctrl := session.NewController(
		ingestor,
		core.NewBootstrapper(platform, cfg.OpenAI.IndexName),
		chatService,
	)

	store := session.NewMemoryStore()
	go store.RunExpiry(context.Background(), sessionSweepInterval, cfg.Server.SessionTTL)

	srv, err := httpserver.NewServer(store, ctrl)
	if err != nil {
		log.WithError(err).Fatal("failed to construct server")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithFields(logrus.Fields{
		"addr":        cfg.Server.Addr,
		"model":       cfg.OpenAI.Model,
		"upload_dir":  cfg.Upload.Dir,
		"tabular":     cfg.Upload.Tabular,
		"session_ttl": cfg.Server.SessionTTL.String(),
	}).Info("listening")
	if err := httpSrv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
