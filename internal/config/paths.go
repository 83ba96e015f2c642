package config

import (
	"os"
	"path/filepath"
)

// Paths resolves every filesystem location this process reads from or
// writes to, covering both dev-mode (everything under the working
// directory) and production (OS-conventional config/cache
// directories) layouts. Uses the stdlib os.UserConfigDir/os.UserCacheDir
// for the production case — see DESIGN.md for why no third-party
// directory-resolution library applies here.
type Paths struct {
	DatabaseFile     string
	ServerConfigFile string
	ToolConfigFile   string
	WorkerDir        string
	LogsDir          string
}

const appDirName = "youtube-dl-project"

// Resolve computes every path this process needs, given --dev-mode and
// the already-loaded server config (whose temp_folder feeds the
// worker-dir computation).
func Resolve(devMode bool, tempFolder string) (Paths, error) {
	configDir, err := configDir(devMode)
	if err != nil {
		return Paths{}, err
	}
	logsDir, err := logsDir(devMode, tempFolder)
	if err != nil {
		return Paths{}, err
	}
	dbDir, err := databaseDir(devMode)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		DatabaseFile:     filepath.Join(dbDir, "state.db"),
		ServerConfigFile: filepath.Join(configDir, "server.yaml"),
		ToolConfigFile:   filepath.Join(configDir, "ytdlp.yaml"),
		WorkerDir:        workerDir(devMode, tempFolder),
		LogsDir:          logsDir,
	}, nil
}

// DefaultDownloadFolder and DefaultTempFolder are the unresolved
// config's starting point before the user edits server.yaml.
func DefaultDownloadFolder(devMode bool) string {
	if devMode {
		return "download"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "download"
	}
	return filepath.Join(home, "Downloads")
}

func DefaultTempFolder(devMode bool) string {
	if devMode {
		return "temp"
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "temp"
	}
	return filepath.Join(dir, appDirName, "data")
}

func configDir(devMode bool) (string, error) {
	if devMode {
		return filepath.Join("debug", "config"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName), nil
}

func databaseDir(devMode bool) (string, error) {
	if devMode {
		return filepath.Join("debug", "db"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName, "db"), nil
}

func logsDir(devMode bool, tempFolder string) (string, error) {
	if devMode {
		return filepath.Join(tempFolder, "debug", "logs"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName, "logs"), nil
}

// workerDir intentionally differs from the user-configured
// temp_folder itself (see fsnode's doc comment): the scheduler is
// allowed to wipe the worker dir wholesale, and it must never be the
// same path the user pointed "temp folder" at.
func workerDir(devMode bool, tempFolder string) string {
	if devMode {
		return filepath.Join(tempFolder, "workers")
	}
	return filepath.Join(tempFolder, "Youtube-DL In-Progress")
}
