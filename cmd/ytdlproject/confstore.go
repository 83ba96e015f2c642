package main

import (
	"sync"

	"github.com/olanti-p/youtube-dl-project/internal/config"
)

// configManager implements api.ConfigStore: it serves the live server
// config and, when a new one is posted, persists it to disk and
// records that a restart is owed, as a take-once flag consumed by the
// run loop.
type configManager struct {
	mu      sync.Mutex
	current config.ServerConfig
	path    string
	pending *config.ServerConfig
}

func newConfigManager(current config.ServerConfig, path string) *configManager {
	return &configManager{current: current, path: path}
}

func (m *configManager) Current() config.ServerConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// RequestReload persists next and marks it pending; the run loop picks
// it up via takePendingReload once the current server has shut down.
func (m *configManager) RequestReload(next config.ServerConfig) error {
	if err := config.Save(m.path, next); err != nil {
		return err
	}
	m.mu.Lock()
	m.pending = &next
	m.mu.Unlock()
	return nil
}

// takePendingReload returns the config posted by the last
// RequestReload and clears it, or ok=false if none is pending.
func (m *configManager) takePendingReload() (config.ServerConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return config.ServerConfig{}, false
	}
	cfg := *m.pending
	m.pending = nil
	return cfg, true
}
