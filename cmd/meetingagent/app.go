package main

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/api/option"

	"github.com/quantumlife/meetingagent/internal/agent"
	"github.com/quantumlife/meetingagent/internal/auth"
	"github.com/quantumlife/meetingagent/internal/committer"
	"github.com/quantumlife/meetingagent/internal/config"
	"github.com/quantumlife/meetingagent/internal/extractor"
	"github.com/quantumlife/meetingagent/internal/ledger"
	"github.com/quantumlife/meetingagent/internal/llm"
	"github.com/quantumlife/meetingagent/internal/logging"
	"github.com/quantumlife/meetingagent/internal/spaces/calendar"
	"github.com/quantumlife/meetingagent/internal/spaces/gmail"
	"github.com/quantumlife/meetingagent/internal/storage"
)

// app holds what every command needs: config, logger and the ledger database
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	db     *storage.DB
	ledger *ledger.Store
	runs   *storage.RunStore

	logCloser io.Closer
}

func openApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return openAppWithConfig(cfg)
}

func openAppWithConfig(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, closer, err := logging.Open(cfg.Logging.Level, cfg.Logging.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	db, err := storage.Open(storage.Config{Path: cfg.Storage.DatabasePath, Logger: logger})
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		closer.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		ledger:    ledger.NewStore(db.Conn()),
		runs:      storage.NewRunStore(db),
		logCloser: closer,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logCloser.Close()
}

// buildAgent wires Google clients and the LLM backend into a run cycle
func (a *app) buildAgent(ctx context.Context, observers ...agent.RunObserver) (*agent.Agent, error) {
	oauthCfg, err := auth.LoadConfig(a.cfg.Google.CredentialsFile)
	if err != nil {
		return nil, err
	}

	creds := auth.NewCredentials(oauthCfg, auth.NewFileTokenStore(a.cfg.Google.TokenFile))
	httpClient, err := creds.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'meetingagent auth' first)", err)
	}

	mailbox, err := gmail.NewClient(ctx, a.cfg.Gmail.Query, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	cal, err := calendar.NewClient(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	gen, err := llm.NewGenerator(a.cfg.ProviderConfig())
	if err != nil {
		return nil, err
	}
	a.logger.Info("Using %s model %s", a.cfg.LLM.Provider, a.cfg.LLM.Model)

	return agent.New(agent.Config{
		Mailbox:         mailbox,
		Extractor:       extractor.New(gen, a.logger),
		Committer:       committer.New(cal),
		Ledger:          a.ledger,
		Rule:            a.cfg.Gmail.Filters,
		CalendarID:      a.cfg.Calendar.CalendarID,
		DefaultDuration: a.cfg.Calendar.DefaultDurationMinutes,
		MaxEmails:       a.cfg.Agent.MaxEmailsPerRun,
		MarkRead:        a.cfg.Agent.MarkAsRead,
		CheckDuplicates: a.cfg.Agent.CheckDuplicates,
		Logger:          a.logger,
		Recorder:        a.runs,
		Observers:       observers,
	}), nil
}
