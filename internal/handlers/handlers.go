package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/services"
)

type Handlers struct {
	Health   *HealthHandler
	Campaign *CampaignHandler
	Trend    *TrendHandler
	User     *UserHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(logger, services),
		Campaign: NewCampaignHandler(services.Orchestrator, services.Users, logger),
		Trend:    NewTrendHandler(services.Trends, logger),
		User:     NewUserHandler(services.Users, services.Trends, services.Matcher, logger),
	}
}
