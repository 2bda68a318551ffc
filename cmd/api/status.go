package main

import (
	"net/http"
	"time"

	"statusgate/internal/config"
	"statusgate/internal/gate"
)

type handlers struct {
	service string
	version string
	now     func() time.Time
	files   http.FileSystem
}

func newHandlers(cfg config.ServerConfig) *handlers {
	return &handlers{
		service: cfg.ServiceName,
		version: cfg.ServiceVersion,
		now:     time.Now,
		files:   http.Dir(cfg.StaticDir),
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type InfoResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) error {
	return gate.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: h.service})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) error {
	return gate.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:    "online",
		Service:   h.service,
		Version:   h.version,
		Timestamp: h.timestamp(),
	})
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) error {
	return gate.WriteJSON(w, http.StatusOK, InfoResponse{
		Service:   h.service,
		Version:   h.version,
		Timestamp: h.timestamp(),
	})
}

// timestamp is UTC with millisecond precision.
func (h *handlers) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
