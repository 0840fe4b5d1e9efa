// Package config loads palette's YAML settings and resolves where its files live.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths is palette's on-disk layout. config.yaml sits in ConfigDir; the
// visit database, the tab and bookmark collections and the logs sit in
// DataDir; the host socket and its lock sit in RuntimeDir.
type Paths struct {
	ConfigDir  string
	DataDir    string
	CacheDir   string
	RuntimeDir string // per-login; the socket must not outlive the session
}

// DefaultPaths follows the XDG base directories, with a palette
// subdirectory in each. Without XDG_RUNTIME_DIR the socket goes under
// ~/.palette/run. Windows keeps config in %APPDATA% and everything else
// in %LOCALAPPDATA%.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir:  filepath.Join(appData, "palette"),
			DataDir:    filepath.Join(localAppData, "palette"),
			CacheDir:   filepath.Join(localAppData, "palette", "cache"),
			RuntimeDir: filepath.Join(localAppData, "palette", "run"),
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(home, ".palette", "run")
	} else {
		runtimeDir = filepath.Join(runtimeDir, "palette")
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, "palette"),
		DataDir:    filepath.Join(dataHome, "palette"),
		CacheDir:   filepath.Join(cacheHome, "palette"),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile is where `palette config` reads and writes settings.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// DatabaseFile holds visit history and command enablement.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.DataDir, "palette.db")
}

// SocketFile is where paletted listens and `palette --remote` dials.
func (p *Paths) SocketFile() string {
	return filepath.Join(p.RuntimeDir, "palette.sock")
}

func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// LogFile receives the UI's logs while bubbletea owns the terminal.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogDir(), "palette.log")
}

// HostLogFile is paletted's default log.
func (p *Paths) HostLogFile() string {
	return filepath.Join(p.LogDir(), "paletted.log")
}

// BookmarksFile is the YAML list the bookmarks provider searches and edits.
func (p *Paths) BookmarksFile() string {
	return filepath.Join(p.DataDir, "bookmarks.yaml")
}

// TabsFile is the YAML snapshot of open pages served by the tabs provider.
func (p *Paths) TabsFile() string {
	return filepath.Join(p.DataDir, "tabs.yaml")
}

// EnsureDirectories creates every directory of the layout.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.CacheDir,
		p.RuntimeDir,
		p.LogDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// Resolve fills the data files and socket that cfg leaves empty, so a
// config.yaml only names the locations it moves.
func (p *Paths) Resolve(cfg *Config) {
	if cfg.Data.DatabasePath == "" {
		cfg.Data.DatabasePath = p.DatabaseFile()
	}
	if cfg.Data.BookmarksFile == "" {
		cfg.Data.BookmarksFile = p.BookmarksFile()
	}
	if cfg.Data.TabsFile == "" {
		cfg.Data.TabsFile = p.TabsFile()
	}
	if cfg.Host.SocketPath == "" {
		cfg.Host.SocketPath = p.SocketFile()
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
