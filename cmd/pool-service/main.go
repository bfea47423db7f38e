package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/pool/engine"
	poolhttp "github.com/radieske/tourney-pool/internal/pool/http"
	"github.com/radieske/tourney-pool/internal/pool/oddscache"
	"github.com/radieske/tourney-pool/internal/pool/state"
	"github.com/radieske/tourney-pool/internal/shared/bus"
	"github.com/radieske/tourney-pool/internal/shared/cache"
	"github.com/radieske/tourney-pool/internal/shared/config"
	"github.com/radieske/tourney-pool/internal/shared/db"
	"github.com/radieske/tourney-pool/internal/shared/kafka"
	"github.com/radieske/tourney-pool/internal/shared/logger"
	"github.com/radieske/tourney-pool/internal/shared/metrics"
	tlclient "github.com/radieske/tourney-pool/internal/tokenledger/client"
)

func main() {
	cfg := config.LoadService("pool-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.ChainID)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// Estado da chain dona do pool em Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	store := state.NewPostgres(pg)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("pg schema", zap.Error(err))
	}

	// Redis: espelho de odds lido pelos proxies
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()
	mirror := oddscache.New(rdb)

	kbus := bus.NewKafkaBus(cfg.KafkaBrokers)
	defer kbus.Close()

	treasury := tlclient.New(cfg.TokenLedgerURL)

	eng := engine.New(log, store, kbus, treasury, mirror, cfg.ChainID, cfg.OwnerAccount)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	// Apostas cross-chain: um único loop sequencial, uma mensagem por vez.
	// Rejeições voltam pra chain de origem pelo tópico de bounce.
	betReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlacements, cfg.ServiceName)
	defer betReader.Close()
	go kbus.ConsumeLoop(ctx, log, betReader, cfg.TopicBetPlacementsBounced, eng.HandleBetPlacement)

	// Payouts que o destino recusou voltam pra cá
	bounceReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPayoutNoticesBounced, cfg.ServiceName)
	defer bounceReader.Close()
	go kbus.ConsumeLoop(ctx, log, bounceReader, "", eng.HandlePayoutBounce)

	srv := poolhttp.NewServer(log, eng, store, func() int64 { return time.Now().UnixMilli() })
	addr := ":" + cfg.HTTPPort
	log.Info("pool-service started",
		zap.String("addr", addr),
		zap.String("chain", cfg.ChainID),
		zap.String("owner", cfg.OwnerAccount),
	)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}
