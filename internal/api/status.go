package api

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/olanti-p/youtube-dl-project/internal/storage"
)

// statusResponse adds disk-space visibility to the task-count aggregate:
// a full download folder is the most common reason a task silently
// stays in TaskStatusActive without finishing, so the control surface
// reports it directly instead of making a caller infer it from process
// exit codes.
type statusResponse struct {
	storage.TaskStats
	DownloadFolder   string  `json:"download_folder"`
	DiskFreeBytes    uint64  `json:"disk_free_bytes"`
	DiskFreeHuman    string  `json:"disk_free_human"`
	DiskUsagePercent float64 `json:"disk_usage_percent"`
}

// handleStatus implements GET /api/status: the global TaskStats
// aggregate, enriched with free space for the active download folder.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.GetOverallStats()
	if err != nil {
		s.logger.Warn("failed to get status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get status")
		return
	}

	resp := statusResponse{TaskStats: stats, DownloadFolder: s.cfg.Current().DownloadFolder}
	if usage, err := disk.Usage(resp.DownloadFolder); err != nil {
		s.logger.Warn("failed to stat disk usage", "path", resp.DownloadFolder, "error", err)
	} else {
		resp.DiskFreeBytes = usage.Free
		resp.DiskFreeHuman = humanize.Bytes(usage.Free)
		resp.DiskUsagePercent = usage.UsedPercent
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePing implements POST /api/ping.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Pong!"))
}
