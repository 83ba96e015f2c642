package config

import (
	"fmt"

	"github.com/olanti-p/youtube-dl-project/internal/fsnode"
)

// Hard caps rejected outright regardless of what a config file requests.
const (
	MaxAutomaticRetries = 50
	MaxDownloadWorkers  = 32
	MaxRetryTimeout     = 3600
)

// ServerConfig is the user-editable runtime configuration: storage
// locations plus scheduler tuning knobs.
type ServerConfig struct {
	DownloadFolder      string `yaml:"download_folder" json:"download_folder"`
	TempFolder          string `yaml:"temp_folder" json:"temp_folder"`
	StartWithOS         bool   `yaml:"start_with_os" json:"start_with_os"`
	ShowAnnouncements   bool   `yaml:"show_announcements" json:"show_announcements"`
	NumAutomaticRetries uint   `yaml:"num_automatic_retries" json:"num_automatic_retries"`
	TimeoutBeforeRetry  uint   `yaml:"timeout_before_retry" json:"timeout_before_retry"`
	NumDownloadWorkers  uint   `yaml:"num_download_workers" json:"num_download_workers"`
}

// DefaultServerConfig mirrors config.yaml's baked-in defaults, with
// download_folder/temp_folder filled in by the caller since those are
// resolved from OS-specific paths at startup.
func DefaultServerConfig(downloadFolder, tempFolder string) ServerConfig {
	return ServerConfig{
		DownloadFolder:      downloadFolder,
		TempFolder:          tempFolder,
		StartWithOS:         false,
		ShowAnnouncements:   true,
		NumAutomaticRetries: 3,
		TimeoutBeforeRetry:  30,
		NumDownloadWorkers:  3,
	}
}

// CheckValidity rejects configs that violate the hardcoded caps or name
// a folder that cannot be created/written to.
func (c ServerConfig) CheckValidity() error {
	if c.NumDownloadWorkers > MaxDownloadWorkers {
		return fmt.Errorf("num_download_workers = %d exceeds limit %d", c.NumDownloadWorkers, MaxDownloadWorkers)
	}
	if c.NumAutomaticRetries > MaxAutomaticRetries {
		return fmt.Errorf("num_automatic_retries = %d exceeds limit %d", c.NumAutomaticRetries, MaxAutomaticRetries)
	}
	if c.TimeoutBeforeRetry > MaxRetryTimeout {
		return fmt.Errorf("timeout_before_retry = %d exceeds limit %d", c.TimeoutBeforeRetry, MaxRetryTimeout)
	}
	if err := fsnode.EnsureDir(c.DownloadFolder); err != nil {
		return fmt.Errorf("download_folder %q is not writable: %w", c.DownloadFolder, err)
	}
	if err := fsnode.EnsureDir(c.TempFolder); err != nil {
		return fmt.Errorf("temp_folder %q is not writable: %w", c.TempFolder, err)
	}
	return nil
}
