package config

import (
	"os"
	"path/filepath"
)

// HomeEnv relocates everything uncover keeps on disk.
const HomeEnv = "UNCOVER_HOME"

// Paths locates uncover's files. Everything lives under Home unless the
// config points elsewhere.
type Paths struct {
	Home       string
	ConfigFile string
	DataDir    string
	LogDir     string
}

// ResolvePaths uses $UNCOVER_HOME, or ~/.uncover when unset.
func ResolvePaths() (Paths, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		home = filepath.Join(userHome, ".uncover")
	}
	return PathsAt(home), nil
}

// PathsAt lays out the standard files under home.
func PathsAt(home string) Paths {
	return Paths{
		Home:       home,
		ConfigFile: filepath.Join(home, "config.yaml"),
		DataDir:    filepath.Join(home, "data"),
		LogDir:     filepath.Join(home, "logs"),
	}
}

// EnsureDirs creates Home, DataDir and LogDir.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Home, p.DataDir, p.LogDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DBPath is storage.path, or chat_history.db in DataDir. A relative
// storage.path is taken from Home.
func (p Paths) DBPath(cfg Config) string {
	return p.under(cfg.Storage.Path, p.DataDir, "chat_history.db")
}

// LogFile is logging.file resolved the same way, or "" when file logging
// is off.
func (p Paths) LogFile(cfg Config) string {
	if cfg.Logging.File == "" {
		return ""
	}
	return p.under(cfg.Logging.File, p.LogDir, "")
}

func (p Paths) under(configured, dir, fallback string) string {
	switch {
	case configured == "":
		return filepath.Join(dir, fallback)
	case filepath.IsAbs(configured):
		return configured
	default:
		return filepath.Join(p.Home, configured)
	}
}
