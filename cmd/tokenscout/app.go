package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cmdrvl/tokenscout/internal/audit"
	"github.com/cmdrvl/tokenscout/internal/classify"
	"github.com/cmdrvl/tokenscout/internal/explorer"
	"github.com/cmdrvl/tokenscout/internal/links"
	"github.com/cmdrvl/tokenscout/internal/llm"
	"github.com/cmdrvl/tokenscout/internal/monitor"
	"github.com/cmdrvl/tokenscout/internal/rpc"
	"github.com/cmdrvl/tokenscout/internal/scheduler"
	"github.com/cmdrvl/tokenscout/internal/social"
	"github.com/cmdrvl/tokenscout/internal/sources"
	dbstore "github.com/cmdrvl/tokenscout/internal/store"
	"github.com/cmdrvl/tokenscout/pkg/config"
)

// taskName identifies one schedulable unit of the pipeline.
type taskName string

const (
	taskChainMonitor     taskName = "chain-monitor"
	taskSourceDiscovery  taskName = "source-discovery"
	taskSourceRetry      taskName = "source-retry"
	taskOwnerHistory     taskName = "owner-history"
	taskAudit            taskName = "audit"
	taskLinks            taskName = "links"
	taskSocialDiscover   taskName = "social-discover"
	taskSocialCheck      taskName = "social-check"
	taskSocialTweets     taskName = "social-tweets"
	taskClassifyContract taskName = "classify-contract"
	taskClassifyAccount  taskName = "classify-account"
)

func allTasks() []taskName {
	return []taskName{
		taskChainMonitor,
		taskSourceDiscovery,
		taskSourceRetry,
		taskOwnerHistory,
		taskAudit,
		taskLinks,
		taskSocialDiscover,
		taskSocialCheck,
		taskSocialTweets,
		taskClassifyContract,
		taskClassifyAccount,
	}
}

// app owns the shared components and builds tasks on demand, so a subset
// command only needs the credentials its own tasks use.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	store *dbstore.Store

	chainClient    *rpc.Client
	explorerClient *explorer.Client
	auditClient    *audit.Client
	socialClient   *social.Client
	provider       llm.Provider
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	st, err := dbstore.New(dbstore.Config{
		DSN:             cfg.Database,
		MaxOpenConns:    dbstore.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    dbstore.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: dbstore.DefaultConfig().ConnMaxLifetime,
		LogLevel:        dbstore.DefaultConfig().LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &app{cfg: cfg, log: logger, store: st}, nil
}

// Store returns the shared database handle.
func (a *app) Store() *dbstore.Store {
	return a.store
}

// Close releases every held connection.
func (a *app) Close() {
	if a.chainClient != nil {
		a.chainClient.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}

func (a *app) chain(ctx context.Context) (*rpc.Client, error) {
	if a.chainClient != nil {
		return a.chainClient, nil
	}
	cfg := rpc.DefaultConfig()
	cfg.URL = a.cfg.RPCURL
	if a.cfg.Monitor.MaxRetries > 0 {
		cfg.MaxRetries = a.cfg.Monitor.MaxRetries
	}
	client, err := rpc.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to rpc: %w", err)
	}
	a.chainClient = client
	return client, nil
}

func (a *app) explorer() (*explorer.Client, error) {
	if a.explorerClient != nil {
		return a.explorerClient, nil
	}
	cfg := explorer.DefaultConfig()
	cfg.APIURL = a.cfg.Explorer.APIURL
	cfg.APIKeys = a.cfg.Explorer.APIKeys
	client, err := explorer.New(cfg)
	if err != nil {
		return nil, err
	}
	a.explorerClient = client
	return client, nil
}

func (a *app) audit() (*audit.Client, error) {
	if a.auditClient != nil {
		return a.auditClient, nil
	}
	cfg := audit.DefaultConfig()
	cfg.APIURL = a.cfg.Audit.APIURL
	cfg.Chain = a.cfg.Audit.Chain
	cfg.Headers = a.cfg.Audit.Headers
	client, err := audit.New(cfg)
	if err != nil {
		return nil, err
	}
	a.auditClient = client
	return client, nil
}

func (a *app) social() (*social.Client, error) {
	if a.socialClient != nil {
		return a.socialClient, nil
	}
	cfg := social.DefaultConfig()
	cfg.UserURL = a.cfg.Social.UserURL
	cfg.TimelineURL = a.cfg.Social.TimelineURL
	cfg.UserFeatures = a.cfg.Social.UserFeatures
	cfg.TweetFeatures = a.cfg.Social.TweetFeatures
	for _, cred := range a.cfg.Social.Credentials {
		cfg.Credentials = append(cfg.Credentials, social.Credential{
			Cookie:    cred.Cookie,
			Bearer:    cred.Bearer,
			CSRFToken: cred.CSRFToken,
		})
	}
	client, err := social.New(cfg)
	if err != nil {
		return nil, err
	}
	a.socialClient = client
	return client, nil
}

func (a *app) llmProvider() (llm.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	provider, err := llm.ForProvider(a.cfg.LLM.Provider, a.cfg.LLM.APIKey, a.cfg.LLM.BaseURL, a.cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	a.provider = provider
	return provider, nil
}

// Run builds the requested tasks, starts the metrics server and blocks until
// ctx is cancelled.
func (a *app) Run(ctx context.Context, names []taskName) error {
	sched := scheduler.New(scheduler.DefaultConfig(), a.log)
	for _, name := range names {
		task, err := a.buildTask(ctx, name)
		if err != nil {
			return fmt.Errorf("wiring task %s: %w", name, err)
		}
		sched.Add(task)
	}

	go a.serveMetrics(ctx)

	return sched.Run(ctx)
}

func (a *app) buildTask(ctx context.Context, name taskName) (scheduler.Task, error) {
	iv := a.cfg.Intervals
	switch name {
	case taskChainMonitor:
		chain, err := a.chain(ctx)
		if err != nil {
			return scheduler.Task{}, err
		}
		mon := monitor.New(a.store, chain, monitor.Config{
			LookbackBlocks: a.cfg.Monitor.LookbackBlocks,
			PollInterval:   a.cfg.PollInterval,
		}, a.log)
		return scheduler.Task{Name: string(name), Run: mon.Run}, nil

	case taskSourceDiscovery, taskSourceRetry, taskOwnerHistory:
		api, err := a.explorer()
		if err != nil {
			return scheduler.Task{}, err
		}
		fetcher := sources.NewFetcher(a.store, api, a.log)
		switch name {
		case taskSourceDiscovery:
			return scheduler.Task{Name: string(name), Interval: iv.SourceDiscovery, Run: fetcher.DiscoverNew}, nil
		case taskSourceRetry:
			return scheduler.Task{Name: string(name), Interval: iv.SourceRetry, Run: fetcher.RetryMissing}, nil
		default:
			return scheduler.Task{Name: string(name), Interval: iv.SourceDiscovery, Run: fetcher.CollectOwnerHistory}, nil
		}

	case taskAudit:
		chain, err := a.chain(ctx)
		if err != nil {
			return scheduler.Task{}, err
		}
		client, err := a.audit()
		if err != nil {
			return scheduler.Task{}, err
		}
		fetcher := audit.NewFetcher(
			a.store, chain, client,
			common.HexToAddress(a.cfg.WETHAddress),
			common.HexToAddress(a.cfg.FactoryAddress),
			a.log,
		)
		return scheduler.Task{Name: string(name), Interval: iv.Audit, Run: fetcher.Run}, nil

	case taskLinks:
		extractor := links.NewExtractor(a.store, a.log)
		return scheduler.Task{Name: string(name), Interval: iv.Links, Run: extractor.Run}, nil

	case taskSocialDiscover, taskSocialCheck, taskSocialTweets:
		client, err := a.social()
		if err != nil {
			return scheduler.Task{}, err
		}
		collector := social.NewCollector(a.store, client, social.DefaultCollectorConfig(), a.log)
		switch name {
		case taskSocialDiscover:
			return scheduler.Task{Name: string(name), Interval: iv.SocialDiscover, Run: collector.Discover}, nil
		case taskSocialCheck:
			return scheduler.Task{Name: string(name), Interval: iv.SocialCheck, Run: collector.CheckAvailability}, nil
		default:
			return scheduler.Task{Name: string(name), Interval: iv.SocialTweets, Run: collector.FetchLatest}, nil
		}

	case taskClassifyContract:
		provider, err := a.llmProvider()
		if err != nil {
			return scheduler.Task{}, err
		}
		classifier := classify.NewContractClassifier(a.store, provider, a.log)
		return scheduler.Task{Name: string(name), Interval: iv.ClassifyContract, Run: classifier.Run}, nil

	case taskClassifyAccount:
		provider, err := a.llmProvider()
		if err != nil {
			return scheduler.Task{}, err
		}
		classifier := classify.NewAccountClassifier(a.store, provider, a.log)
		return scheduler.Task{Name: string(name), Interval: iv.ClassifyAccount, Run: classifier.Run}, nil
	}
	return scheduler.Task{}, fmt.Errorf("unknown task: %s", name)
}

func (a *app) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.MetricsPort),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info().Int("port", a.cfg.Server.MetricsPort).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.log.Error().Err(err).Msg("metrics server failed")
	}
}
