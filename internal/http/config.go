package http

import (
	"encoding/json"
	"net/http"

	"github.com/agrisync/agrisync/internal/config"
	"github.com/agrisync/agrisync/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type configJson struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	BaseURL       string `json:"base_url"`
	LogLevel      string `json:"log_level"`
	LogPath       string `json:"log_path"`
	LogMaxSize    int    `json:"log_max_size"`
	LogMaxBackups int    `json:"log_max_backups"`
	RemoteBaseURL string `json:"remote_base_url"`
	CacheTTLMs    int64  `json:"cache_ttl_ms"`
	MaxAttempts   int    `json:"sync_max_attempts"`
	Version       string `json:"version"`
}

type configHandler struct {
	encoder encoder

	cfg    *config.AppConfig
	server Server
}

func newConfigHandler(encoder encoder, server Server, cfg *config.AppConfig) *configHandler {
	return &configHandler{
		encoder: encoder,
		cfg:     cfg,
		server:  server,
	}
}

func (h configHandler) Routes(r chi.Router) {
	r.Get("/", h.getConfig)
	r.Patch("/", h.updateConfig)
}

func (h configHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	conf := configJson{
		Host:          h.cfg.Config.Server.Host,
		Port:          h.cfg.Config.Server.Port,
		BaseURL:       h.cfg.Config.Server.BaseURL,
		LogLevel:      h.cfg.Config.Logging.Level,
		LogPath:       h.cfg.Config.Logging.Path,
		LogMaxSize:    h.cfg.Config.Logging.MaxFileSize,
		LogMaxBackups: h.cfg.Config.Logging.MaxBackupCount,
		RemoteBaseURL: h.cfg.Config.Remote.BaseURL,
		CacheTTLMs:    h.cfg.Config.Cache.DefaultTTLMs,
		MaxAttempts:   h.cfg.Config.Sync.MaxAttempts,
		Version:       h.server.version,
	}

	render.JSON(w, r, conf)
}

func (h configHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var data domain.ConfigUpdate

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.encoder.Error(w, err)
		return
	}

	// applied in-memory only; the config file on disk is left alone
	if data.Host != nil {
		h.cfg.Config.Server.Host = *data.Host
	}

	if data.Port != nil {
		h.cfg.Config.Server.Port = *data.Port
	}

	if data.LogLevel != nil {
		h.cfg.Config.Logging.Level = *data.LogLevel
	}

	if data.LogPath != nil {
		h.cfg.Config.Logging.Path = *data.LogPath
	}

	render.NoContent(w, r)
}
