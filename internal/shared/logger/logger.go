package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New monta o zap padrão dos serviços; em "local" usa o config de desenvolvimento.
// chain entra como campo fixo pra rastrear qual chain emitiu cada linha.
func New(serviceName string, env string, chainID string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
			zap.String("chain", chainID),
		),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
