// Package main wires together the lead engine service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/analyzer"
	"github.com/xandervandijck/scraper-backend/internal/api"
	"github.com/xandervandijck/scraper-backend/internal/broadcast"
	"github.com/xandervandijck/scraper-backend/internal/cache"
	"github.com/xandervandijck/scraper-backend/internal/config"
	"github.com/xandervandijck/scraper-backend/internal/emailcheck"
	"github.com/xandervandijck/scraper-backend/internal/jobs"
	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/logging"
	"github.com/xandervandijck/scraper-backend/internal/metrics"
	"github.com/xandervandijck/scraper-backend/internal/progress"
	"github.com/xandervandijck/scraper-backend/internal/search"
	"github.com/xandervandijck/scraper-backend/internal/sitefetch"
	"github.com/xandervandijck/scraper-backend/internal/storage/memory"
	"github.com/xandervandijck/scraper-backend/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	sectors, err := analyzer.LoadSectors(cfg.Sectors.Path, logger.Named("sectors"))
	if err != nil {
		logger.Fatal("load sectors failed", zap.Error(err))
	}
	defer sectors.Close()

	registry := analyzer.NewRegistry()
	registry.Register("erp", analyzer.NewERP(sectors))
	registry.Register("recruitment", analyzer.NewRecruitment())

	var (
		sink     leads.LeadSink
		sessions leads.SessionStore
	)
	if cfg.DB.DSN != "" {
		leadStore, sessionStore, pool, err := postgres.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("database connect failed", zap.Error(err))
		}
		defer pool.Close()
		sink, sessions = leadStore, sessionStore
		logger.Info("using postgres stores")
	} else {
		sink, sessions = memory.NewLeadStore(), memory.NewSessionStore()
		logger.Info("using in-memory stores")
	}

	broadcasters := broadcast.Multi{
		broadcast.NewFanout(0),
		broadcast.NewLogger(logger.Named("events")),
	}
	if cfg.PubSub.ProjectID != "" {
		publisher, err := broadcast.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger.Named("pubsub"))
		if err != nil {
			logger.Warn("pubsub broadcaster init failed", zap.Error(err))
		} else {
			defer func() {
				if closeErr := publisher.Close(); closeErr != nil {
					logger.Warn("pubsub close failed", zap.Error(closeErr))
				}
			}()
			broadcasters = append(broadcasters, publisher)
		}
	}

	searcher := search.New(search.Config{
		UseBrowser:      cfg.Job.BrowserSearch(),
		MaxPages:        cfg.Search.MaxPages,
		MaxResults:      cfg.Engine.MaxResultsPerQuery,
		UserAgent:       cfg.Search.UserAgent,
		NavTimeout:      cfg.Search.NavTimeout(),
		SelectorTimeout: cfg.Search.SelectorTimeout(),
		BaseDelay:       cfg.Search.BaseDelay(),
		MaxDelay:        cfg.Search.MaxDelay(),
	}, logger.Named("search"))

	store := cache.New()
	defer store.Close()

	validator := emailcheck.New(emailcheck.Config{
		DNSTimeout:  cfg.Email.DNSTimeout(),
		SMTPTimeout: cfg.Email.SMTPTimeout(),
		HelloDomain: cfg.Email.HelloDomain,
		ProbeSender: cfg.Email.ProbeSender,
	}, logger.Named("emailcheck")).WithMXCache(store.Results)

	fetcher := sitefetch.New(sitefetch.Config{
		UserAgent:       cfg.Fetch.UserAgent,
		HomepageTimeout: cfg.Fetch.HomepageTimeout(),
		ContactTimeout:  cfg.Fetch.ContactTimeout(),
		MaxRedirects:    cfg.Fetch.MaxRedirects,
		ContactDelay:    cfg.Fetch.ContactDelay(),
		PerDomainRPS:    cfg.Fetch.PerDomainRPS,
	}, store, validator, logger.Named("sitefetch"))

	manager := jobs.NewManager(jobs.Deps{
		Registry: registry,
		Searcher: searcher,
		Scraper:  fetcher,
		Sink:     sink,
		Sessions: sessions,
		Cache:    store,
		Logger:   logger.Named("jobs"),
	})

	var sinkForJobs progress.Broadcaster = broadcasters
	apiServer := api.NewServer(manager, sinkForJobs, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	manager.StopAll()
	searcher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
