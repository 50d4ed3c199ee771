package main

import (
	"context"
	"errors"
	"flag"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/guildgate/internal/cache"
	"github.com/dropDatabas3/guildgate/internal/config"
	"github.com/dropDatabas3/guildgate/internal/discord"
	"github.com/dropDatabas3/guildgate/internal/email"
	"github.com/dropDatabas3/guildgate/internal/events"
	httpx "github.com/dropDatabas3/guildgate/internal/http"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/rate"
	"github.com/dropDatabas3/guildgate/internal/reconcile"
	"github.com/dropDatabas3/guildgate/internal/security/session"
	"github.com/dropDatabas3/guildgate/internal/store"
	"github.com/dropDatabas3/guildgate/internal/verify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, continuing with system env: %v", err)
	}

	configPath := flag.String("config", "configs/config.example.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "guildgate",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	var storeCfg store.Config
	storeCfg.Driver = cfg.Storage.Driver
	storeCfg.DSN = cfg.Storage.DSN
	storeCfg.Postgres.MaxOpenConns = cfg.Storage.Postgres.MaxOpenConns
	storeCfg.Postgres.MaxIdleConns = cfg.Storage.Postgres.MaxIdleConns
	storeCfg.Postgres.ConnMaxLifetime = cfg.Storage.Postgres.ConnMaxLifetime
	repo, err := store.Open(ctx, storeCfg)
	if err != nil {
		lg.Fatal("store open failed", logger.Err(err))
	}
	defer repo.Close()

	// Cache
	cacheClient, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		lg.Fatal("cache init failed", logger.Err(err))
	}
	defer func() { _ = cacheClient.Close() }()

	// Rate limiters
	var callbackLimiter, loginLimiter rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Cache.Kind == "redis" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			callbackLimiter = rate.NewRedisLimiter(rdb, "rl:cb:", cfg.Rate.Callback.Limit, cfg.CallbackWindow())
			loginLimiter = rate.NewRedisLimiter(rdb, "rl:login:", cfg.Rate.AdminLogin.Limit, cfg.AdminLoginWindow())
		} else {
			callbackLimiter = rate.NewMemoryLimiter(cfg.Rate.Callback.Limit, cfg.CallbackWindow())
			loginLimiter = rate.NewMemoryLimiter(cfg.Rate.AdminLogin.Limit, cfg.AdminLoginWindow())
		}
	}

	// Provider
	dc := discord.New(discord.Config{
		APIBase:      cfg.Discord.APIBase,
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  cfg.Discord.RedirectURL,
		Scopes:       cfg.Discord.Scopes,
		BotToken:     cfg.Discord.BotToken,
	})

	// Kafka (opcional)
	var producer *events.Producer
	if cfg.Kafka.Enabled {
		producer = events.NewProducer(events.Config{
			Broker:   cfg.Kafka.Broker,
			Topic:    cfg.Kafka.Topic,
			Username: cfg.Kafka.Username,
			Password: cfg.Kafka.Password,
		})
		defer func() { _ = producer.Close() }()
	}

	// SMTP (opcional): solo si hay destinatario para el reporte
	var mailer *email.ReportMailer
	if cfg.Reconcile.ReportEmail != "" && cfg.SMTP.Host != "" {
		sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		if cfg.SMTP.TLS != "" {
			sender.TLSMode = cfg.SMTP.TLS
		}
		sender.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		mailer = email.NewReportMailer(sender, cfg.Reconcile.ReportEmail)
	}

	// Core
	recorder := verify.NewRecorder(dc, dc, repo, producer)
	sessions := session.NewRevoker(cacheClient)

	var pacer reconcile.Pacer
	if cfg.Reconcile.Pacer == "bucket" {
		pacer = reconcile.NewBucketPacer(float64(cfg.Reconcile.PerSecond), cfg.Reconcile.Burst)
	} else {
		pacer = reconcile.NewDelayPacer(cfg.ReconcileDelay())
	}
	reconciler := reconcile.New(dc, pacer, producer, func(s reconcile.Status) {
		httpx.ObserveReconcileOutcome(string(s))
	})

	metricsHandler, err := httpx.RegisterMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		lg.Fatal("metrics registration failed", logger.Err(err))
	}

	// Login keys desde config
	keys := make([]httpx.LoginKey, 0, len(cfg.Admin.LoginKeys))
	for _, lk := range cfg.Admin.LoginKeys {
		role, ok := session.ParseRole(lk.Role)
		if !ok {
			lg.Fatal("invalid login key role", logger.String("role", lk.Role))
		}
		keys = append(keys, httpx.LoginKey{KeyHash: lk.KeyHash, Role: role})
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Callback: &httpx.CallbackHandler{
			Recorder:    recorder,
			FrontendURL: cfg.Frontend.BaseURL,
		},
		Login: &httpx.LoginHandler{
			Keys:       keys,
			JWTSecret:  []byte(cfg.Admin.JWTSecret),
			SessionTTL: cfg.SessionTTLDuration(),
		},
		Logout: &httpx.LogoutHandler{Sessions: sessions},
		Users:  &httpx.UsersHandler{Repo: repo},
		Pull: &httpx.PullHandler{
			Repo:          repo,
			Reconciler:    reconciler,
			Mailer:        mailer,
			DefaultRoleID: cfg.Discord.VerifiedRoleID,
			BatchTimeout:  cfg.BatchTimeout(),
		},
		Stats:     &httpx.StatsHandler{Repo: repo, Cache: cacheClient},
		CheckUser: &httpx.CheckUserHandler{Repo: repo},
		Readyz:    &httpx.ReadyzHandler{Repo: repo, Cache: cacheClient},

		Metrics:            metricsHandler,
		JWTSecret:          []byte(cfg.Admin.JWTSecret),
		Sessions:           sessions,
		CallbackLimiter:    callbackLimiter,
		LoginLimiter:       loginLimiter,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := httpx.NewServer(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		return httpx.Shutdown(srv, 15*time.Second)
	})

	if err := g.Wait(); err != nil {
		lg.Fatal("server exited", logger.Err(err))
	}
	lg.Info("bye")
}
