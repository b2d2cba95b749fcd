package main

import (
	"go.uber.org/zap"

	"github.com/vlsemenov/samaraenergo/internal/client"
	"github.com/vlsemenov/samaraenergo/internal/config"
	"github.com/vlsemenov/samaraenergo/internal/qr"
)

// newClient creates the portal client from the environment config
func newClient(cfg *config.Config, logger *zap.Logger) (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:  cfg.Portal.BaseURL,
		User:     cfg.Portal.User,
		Password: cfg.Portal.Password,
		Language: cfg.Portal.Language,
		Timeout:  cfg.Portal.Timeout,
		RateRPS:  cfg.Portal.RateRPS,
	}, logger)
}

// newLocator creates the QR locator with thresholds from the config
func newLocator(cfg *config.Config) qr.Locator {
	return qr.Locator{
		MinHeight: cfg.QR.MinHeight,
		RatioMin:  cfg.QR.RatioMin,
		RatioMax:  cfg.QR.RatioMax,
	}
}
