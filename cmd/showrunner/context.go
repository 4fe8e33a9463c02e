package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/pipeline"
	"showrunner/internal/provider/registry"
	"showrunner/internal/review"
	"showrunner/internal/stage"
	"showrunner/internal/stages"
	"showrunner/internal/store"
	"showrunner/internal/topicqueue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles the fully wired orchestrator for one CLI invocation.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *store.DB
	runs      *pipeline.Store
	machine   *pipeline.Machine
	registry  *stage.Registry
	providers *registry.Registry
	reviews   *review.Queue
	topics    *topicqueue.Queue
	notifier  notifications.Service
}

func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// buildRuntime wires storage, providers, stage handlers, and the pipeline
// machine from config.
func (c *commandContext) buildRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	providers, err := registry.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build provider chains: %w", err)
	}

	reviews := review.New(db)
	topics := topicqueue.New(db, cfg.Workflow.TopicMaxRetries)
	notifier := notifications.NewService(cfg)

	handlers, err := stages.All(stages.Deps{
		Config:    cfg,
		Logger:    logger,
		Providers: providers,
		Notifier:  notifier,
		Reviews:   reviews,
		Topics:    topics,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build stage handlers: %w", err)
	}
	stageRegistry, err := stage.NewRegistry(handlers...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bind stage handlers: %w", err)
	}

	runs := pipeline.NewStore(db)
	machine, err := pipeline.New(pipeline.Options{
		Store:    runs,
		Registry: stageRegistry,
		Config:   cfg,
		Logger:   logger,
		Topics:   topics,
		Reviews:  reviews,
		Notifier: notifier,
		Costs:    providers.Costs,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		runs:      runs,
		machine:   machine,
		registry:  stageRegistry,
		providers: providers,
		reviews:   reviews,
		topics:    topics,
		notifier:  notifier,
	}, nil
}
