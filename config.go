package libkit

import (
	"strings"

	"github.com/gobeaver/beaver-kit/config"

	"github.com/gobeaver/libkit/filevalidator"
)

type Config struct {
	// File store driver used for every directory (local, memory)
	Driver string `env:"LIBKIT_DRIVER,default:local"`

	// Canonical storage receiving installs and updates
	WriteDir string `env:"LIBKIT_WRITE_DIR,default:./libraries"`

	// Read-only sources, comma-separated. Read priority is single, dev,
	// package, library and finally the write directory.
	LibraryDirs  string `env:"LIBKIT_LIBRARY_DIRS"`  // canonical layout
	DevDirs      string `env:"LIBKIT_DEV_DIRS"`      // arbitrarily named subdirectories
	SingleDirs   string `env:"LIBKIT_SINGLE_DIRS"`   // one library at the directory root
	PackageFiles string `env:"LIBKIT_PACKAGE_FILES"` // .h5p archives

	// YAML layout replacing the directory settings above
	LayoutFile string `env:"LIBKIT_LAYOUT_FILE"`

	IgnorePatterns string `env:"LIBKIT_IGNORE_PATTERNS,default:package.json"` // comma-separated globs
	WatchDevDirs   bool   `env:"LIBKIT_WATCH_DEV_DIRS,default:false"`

	// Extensions accepted for library files, comma-separated. Empty keeps
	// filevalidator.LibraryExtensions, "*" accepts everything.
	FileExtensions string `env:"LIBKIT_FILE_EXTENSIONS"`

	// Logging
	LogLevel      string `env:"LIBKIT_LOG_LEVEL,default:info"`
	LogFile       string `env:"LIBKIT_LOG_FILE"`
	LogMaxSize    int    `env:"LIBKIT_LOG_MAX_SIZE,default:100"` // megabytes
	LogMaxBackups int    `env:"LIBKIT_LOG_MAX_BACKUPS,default:3"`
	LogCompress   bool   `env:"LIBKIT_LOG_COMPRESS,default:false"`
	LogStderr     bool   `env:"LIBKIT_LOG_STDERR,default:false"` // console logs to stderr instead of stdout

	// HTTP listen address of the serve command, ":8080" when empty
	ListenAddr string `env:"LIBKIT_LISTEN_ADDR"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListenAddress returns ListenAddr or the default ":8080".
func (c *Config) ListenAddress() string {
	if c.ListenAddr == "" {
		return ":8080"
	}
	return c.ListenAddr
}

// FileValidator returns the validator for library file names configured by
// FileExtensions, or nil when every name is accepted.
func (c *Config) FileValidator() *filevalidator.NameValidator {
	exts := splitList(c.FileExtensions)
	switch {
	case len(exts) == 0:
		return filevalidator.ForLibraryFiles()
	case len(exts) == 1 && exts[0] == "*":
		return nil
	default:
		return filevalidator.NewBuilder().Extensions(exts...).MaxNameLength(255).Build()
	}
}

// splitList splits a comma-separated setting, dropping empty entries.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
