package main

import (
	"go.uber.org/zap"

	"github.com/vlsemenov/samaraenergo/internal/config"
	"github.com/vlsemenov/samaraenergo/internal/logging"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
