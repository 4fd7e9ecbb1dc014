package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "verigate/internal/auth/handler"
	authservice "verigate/internal/auth/service"
	authstore "verigate/internal/auth/store"
	chaincache "verigate/internal/chain/cache"
	"verigate/internal/chain/contract"
	chainhandler "verigate/internal/chain/handler"
	chainservice "verigate/internal/chain/service"
	"verigate/internal/jwttoken"
	"verigate/internal/platform/config"
	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/logger"
	"verigate/internal/platform/metrics"
	"verigate/internal/platform/postgres"
	platformredis "verigate/internal/platform/redis"
	storageclient "verigate/internal/storage/client"
	storagehandler "verigate/internal/storage/handler"
	storageservice "verigate/internal/storage/service"
	verificationhandler "verigate/internal/verification/handler"
	verificationservice "verigate/internal/verification/service"
	verificationstore "verigate/internal/verification/store"
	"verigate/pkg/platform/audit"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal services packages.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		stderrFatal("load configuration", err)
	}
	log := logger.New(cfg.Development)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The credential store is the only hard dependency at startup.
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := metrics.New()

	var publisher audit.Publisher = audit.Noop{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(brokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		publisher = kafka
	}
	defer publisher.Close()

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	users := authstore.NewPostgres(pool)
	requests := verificationstore.NewPostgres(pool)
	tokens := jwttoken.NewService(cfg.JWTSecret, "verigate", cfg.JWTExpiry)

	auth, err := authservice.New(users, tokens, log,
		authservice.WithMetrics(m),
		authservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("auth service init failed", "error", err)
		os.Exit(1)
	}

	verifications, err := verificationservice.New(requests, users, log,
		verificationservice.WithMetrics(m),
		verificationservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("verification service init failed", "error", err)
		os.Exit(1)
	}

	pinner := storageclient.NewIPFS(cfg.IPFSAPIURL, cfg.IPFSProjectID, cfg.IPFSProjectSecret, cfg.IPFSGateway)
	storage, err := storageservice.New(pinner, requests, log, storageservice.WithMetrics(m))
	if err != nil {
		log.Error("storage service init failed", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authhandler.New(auth, tokens, log).Register(r)
	verificationhandler.New(verifications, tokens, log).Register(r)
	storagehandler.New(storage, tokens, log).Register(r)

	// The chain recorder is optional; without an RPC endpoint the blockchain
	// routes are simply not mounted.
	if cfg.RPCURL != "" {
		registry, err := contract.Dial(ctx, cfg.RPCURL, cfg.ContractAddress, cfg.ChainPrivateKey)
		if err != nil {
			log.Error("registry contract binding failed", "error", err)
			os.Exit(1)
		}
		chain, err := chainservice.New(registry, requests, users, log,
			chainservice.WithMetrics(m),
			chainservice.WithAuditPublisher(publisher),
			chainservice.WithStatusCache(chaincache.New(redisClient, cfg.StatusCacheTTL)),
		)
		if err != nil {
			log.Error("chain service init failed", "error", err)
			os.Exit(1)
		}
		chainhandler.New(chain, tokens, log).Register(r)
	} else {
		log.Warn("RPC_URL not set, blockchain routes disabled")
	}

	srv := httpserver.New(cfg.ServerAddr, r)

	go func() {
		log.Info("server listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func stderrFatal(msg string, err error) {
	_, _ = os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
