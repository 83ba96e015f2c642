// Package security implements the HTTP-layer access/audit log: one
// entry per request touching the control surface, recording source
// IP, user agent, action, and outcome.
package security

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AccessLogEntry is one JSONL record written to the audit log.
type AccessLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SourceIP  string    `json:"source_ip"`
	UserAgent string    `json:"user_agent"`
	Action    string    `json:"action"` // e.g. "POST /api/jobs/new"
	Status    int       `json:"status"` // 200, 401, 400, ...
	Details   string    `json:"details"`
}

// AuditLogger appends every auth failure and config-apply rejection
// to a JSONL file under logsDir, alongside a structured slog line.
type AuditLogger struct {
	logFile *os.File
	mu      sync.Mutex
	logPath string
	logger  *slog.Logger
}

// NewAuditLogger opens (creating if absent) access.log under logsDir.
func NewAuditLogger(logsDir string, logger *slog.Logger) *AuditLogger {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		logger.Error("failed to create audit log directory", "error", err)
	}

	path := filepath.Join(logsDir, "access.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Error("failed to open audit log", "error", err)
	}

	return &AuditLogger{
		logFile: f,
		logPath: path,
		logger:  logger,
	}
}

// Log records one entry: sourceIP/userAgent/action describe the
// request, status is the HTTP status returned, details is a short
// human-readable reason (e.g. "invalid session", "config rejected:
// num_download_workers exceeds limit").
func (a *AuditLogger) Log(sourceIP, userAgent, action string, status int, details string) {
	entry := AccessLogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SourceIP:  sourceIP,
		UserAgent: userAgent,
		Action:    action,
		Status:    status,
		Details:   details,
	}

	a.mu.Lock()
	if a.logFile != nil {
		if jsonBytes, err := json.Marshal(entry); err == nil {
			a.logFile.WriteString(string(jsonBytes) + "\n")
		}
	}
	a.mu.Unlock()

	level := slog.LevelInfo
	if status >= 400 {
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, "audit", "action", action, "status", status, "ip", sourceIP, "details", details)
}

// Close releases the underlying file handle.
func (a *AuditLogger) Close() {
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// GetRecentLogs returns up to limit most-recent entries, newest
// first. Used by operators inspecting access.log without a separate
// tailing tool.
func (a *AuditLogger) GetRecentLogs(limit int) []AccessLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	content, err := os.ReadFile(a.logPath)
	if err != nil {
		return []AccessLogEntry{}
	}

	lines := strings.Split(string(content), "\n")
	var entries []AccessLogEntry
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var entry AccessLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			entries = append(entries, entry)
		}
		if len(entries) >= limit {
			break
		}
	}
	return entries
}
