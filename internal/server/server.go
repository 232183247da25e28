package server

import (
	"github.com/agrisync/agrisync/internal/connectivity"
	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/logger"
	"github.com/agrisync/agrisync/internal/scheduler"
	"github.com/agrisync/agrisync/internal/syncqueue"
	"github.com/rs/zerolog"
)

// Server ties the background services to one start/stop lifecycle.
type Server struct {
	log    zerolog.Logger
	config *domain.Config

	monitor   *connectivity.Monitor
	queueSvc  syncqueue.Service
	scheduler scheduler.Service
}

func NewServer(log logger.Logger, config *domain.Config, monitor *connectivity.Monitor, queueSvc syncqueue.Service, scheduler scheduler.Service) *Server {
	return &Server{
		log:       log.With().Str("module", "server").Logger(),
		config:    config,
		monitor:   monitor,
		queueSvc:  queueSvc,
		scheduler: scheduler,
	}
}

func (s *Server) Start() error {
	// queue subscribes before the monitor starts probing so the first
	// offline to online transition is never missed
	s.queueSvc.Start()
	s.monitor.Start()

	// start cron scheduler
	s.scheduler.Start()

	return nil
}

func (s *Server) Shutdown() {
	s.log.Info().Msg("shutting down server")

	s.scheduler.Stop()
	s.monitor.Stop()
	s.queueSvc.Stop()
}
