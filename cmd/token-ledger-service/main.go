package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/shared/config"
	"github.com/radieske/tourney-pool/internal/shared/db"
	"github.com/radieske/tourney-pool/internal/shared/logger"
	"github.com/radieske/tourney-pool/internal/shared/metrics"
	ledgerhttp "github.com/radieske/tourney-pool/internal/tokenledger/http"
	"github.com/radieske/tourney-pool/internal/tokenledger/repo"
)

func main() {
	cfg := config.LoadService("token-ledger-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.ChainID)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	accounts := repo.NewPostgres(pg)
	if err := accounts.EnsureSchema(context.Background()); err != nil {
		log.Fatal("pg schema", zap.Error(err))
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	srv := ledgerhttp.NewServer(log, accounts)
	addr := ":" + cfg.HTTPPort
	log.Info("token-ledger-service started", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}
