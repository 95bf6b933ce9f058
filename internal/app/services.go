package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"lightingctl/internal/config"
	"lightingctl/internal/controller"
	"lightingctl/internal/db"
	"lightingctl/internal/heartbeat"
	"lightingctl/internal/ledger"
	"lightingctl/internal/shelly"
	"lightingctl/internal/viewer"
	"lightingctl/internal/wake"
	"lightingctl/internal/webhook"
)

const webhookShutdownTimeout = 5 * time.Second

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger

	Devices   *shelly.Control
	Wake      *wake.Signal
	Heartbeat *heartbeat.Pinger
	Viewer    *viewer.Poster
	Watcher   *config.Watcher

	Controller *controller.Controller
	Webhook    *webhook.Server
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, configPath string) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Files.LedgerFile)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger
	s.Ledger = ledger.New(database.DB)

	// Initialize device fleet
	s.Devices, err = shelly.New(&cfg.ShellyDevices)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Wake = wake.NewSignal()
	s.Heartbeat = heartbeat.New(cfg.HeartbeatMonitor.WebsiteURL, cfg.HeartbeatMonitor.HeartbeatTimeout.Duration())
	s.Viewer = viewer.New(cfg.General.WebsiteBaseURL, cfg.General.WebsiteAccessKey, cfg.General.WebsiteTimeout.Duration())
	s.Watcher = config.NewWatcher(configPath)

	s.Controller = controller.New(cfg, s.Watcher, s.Devices, s.Wake, s.Ledger, s.Heartbeat, s.Viewer)

	if cfg.Webhook.Enabled {
		s.Webhook = webhook.NewServer(cfg.Webhook.Host, cfg.Webhook.Port, cfg.Webhook.Path, s.Wake)
	}

	return s, nil
}

// Start starts all services. The onFatalError callback is called when the
// control loop dies on a non-recoverable error.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if s.Webhook != nil {
		go func() {
			if err := s.Webhook.Run(ctx, webhookShutdownTimeout); err != nil {
				log.Error().Err(err).Msg("Webhook server failed")
			}
		}()
	}

	go func() {
		if err := s.Controller.Run(ctx); err != nil {
			// Mark the service down before shutting down
			if hbErr := s.Heartbeat.Ping(context.Background(), true); hbErr != nil {
				log.Warn().Err(hbErr).Msg("Failed to send failure heartbeat")
			}
			onFatalError(err)
		}
	}()

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
