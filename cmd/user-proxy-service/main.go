package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/pool/oddscache"
	"github.com/radieske/tourney-pool/internal/shared/bus"
	"github.com/radieske/tourney-pool/internal/shared/cache"
	"github.com/radieske/tourney-pool/internal/shared/config"
	"github.com/radieske/tourney-pool/internal/shared/kafka"
	"github.com/radieske/tourney-pool/internal/shared/logger"
	"github.com/radieske/tourney-pool/internal/shared/metrics"
	tlclient "github.com/radieske/tourney-pool/internal/tokenledger/client"
	"github.com/radieske/tourney-pool/internal/userproxy"
	"github.com/radieske/tourney-pool/internal/userproxy/history"
	proxyhttp "github.com/radieske/tourney-pool/internal/userproxy/http"
)

func main() {
	cfg := config.LoadService("user-proxy-service")
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.ChainID)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	// Histórico local da chain do usuário (bbolt embutido)
	if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755); err != nil {
		log.Fatal("history dir", zap.Error(err))
	}
	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Fatal("history open", zap.Error(err))
	}
	defer hist.Close()

	// Redis: leitura do espelho de odds mantido pelo pool
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()
	mirror := oddscache.New(rdb)

	kbus := bus.NewKafkaBus(cfg.KafkaBrokers)
	defer kbus.Close()

	treasury := tlclient.New(cfg.TokenLedgerURL)

	proxy := userproxy.NewProxy(log, hist, treasury, kbus, mirror,
		cfg.ChainID, cfg.PoolChainID, cfg.OwnerAccount)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	// Cada chain consome todos os payouts e filtra pelo target; o group id
	// carrega o CHAIN_ID pra cada proxy ter o próprio offset.
	payoutReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPayoutNotices, cfg.ServiceName+"-"+cfg.ChainID)
	defer payoutReader.Close()
	go kbus.ConsumeLoop(ctx, log, payoutReader, cfg.TopicPayoutNoticesBounced, proxy.HandlePayoutNotice)

	// Apostas que o pool devolveu (bounce)
	bounceReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlacementsBounced, cfg.ServiceName+"-"+cfg.ChainID)
	defer bounceReader.Close()
	go kbus.ConsumeLoop(ctx, log, bounceReader, "", proxy.HandleBetBounce)

	srv := proxyhttp.NewServer(log, proxy)
	addr := ":" + cfg.HTTPPort
	log.Info("user-proxy-service started",
		zap.String("addr", addr),
		zap.String("chain", cfg.ChainID),
		zap.String("pool_chain", cfg.PoolChainID),
	)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}
