package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/internal/metrics"
	"github.com/nulzo/model-bridge/internal/server/middleware"
	v1 "github.com/nulzo/model-bridge/internal/server/v1"
	"github.com/nulzo/model-bridge/internal/server/validator"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	var mbState v1.MailboxState
	if s.deps.Mailbox != nil {
		mbState = s.deps.Mailbox
	}

	// probes
	healthHandler := v1.NewHealthHandler(s.deps.Registry, mbState)
	s.router.GET("/health", healthHandler.Health)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler(s.deps.Metrics)))
	}

	api := s.router.Group("/api")
	if s.config.Server.IngressRPS > 0 {
		ingress := middleware.NewIngressLimiter(s.config.Server.IngressRPS, s.config.Server.IngressBurst, s.logger)
		api.Use(ingress.Middleware())
	}
	{
		generationHandler := v1.NewGenerationHandler(s.deps.Dispatcher, validator.New())
		api.POST("/ai-request", generationHandler.Create)

		if s.deps.Mailbox != nil {
			mailboxHandler := v1.NewMailboxHandler(s.deps.Mailbox)
			api.POST("/process-file-request", mailboxHandler.Process)
		}

		configHandler := v1.NewConfigHandler(s.deps.Registry, s.deps.Limiter, s.config.Mailbox.Dir)
		api.GET("/config", configHandler.Get)
	}
}
