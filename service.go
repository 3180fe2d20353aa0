package libkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/sirupsen/logrus"

	// Built-in file store drivers
	_ "github.com/gobeaver/libkit/driver/local"
	_ "github.com/gobeaver/libkit/driver/memory"
	_ "github.com/gobeaver/libkit/driver/zip"
	"github.com/gobeaver/libkit/internal/logging"
)

// Global instance
var (
	defaultService *Service
	defaultOnce    sync.Once
	defaultErr     error
)

// Service owns an aggregate built from configuration together with the
// storages and the logger behind it.
type Service struct {
	*AggregatingStorage

	layout   *Layout
	storages map[string]LibraryStorage
	logger   *logrus.Logger
	cancel   context.CancelFunc
}

// Builder provides a way to create services with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Init initializes the global service using the builder's prefix
func (b *Builder) Init() error {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return err
	}
	return Init(cfg)
}

// New creates a new service using the builder's prefix
func (b *Builder) New() (*Service, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Init initializes the global service
func Init(configs ...*Config) error {
	defaultOnce.Do(func() {
		var cfg *Config
		if len(configs) > 0 {
			cfg = configs[0]
		} else {
			cfg, defaultErr = GetConfig()
			if defaultErr != nil {
				return
			}
		}

		defaultService, defaultErr = New(cfg)
	})

	return defaultErr
}

// New creates a service with given config. The layout comes from
// cfg.LayoutFile when set and from the directory settings otherwise.
func New(cfg *Config) (*Service, error) {
	logger, err := logging.InitLogger(logging.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		Stderr:     cfg.LogStderr,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	layout := LayoutFromConfig(cfg)
	if cfg.LayoutFile != "" {
		layout, err = LoadLayout(cfg.LayoutFile)
		if err != nil {
			return nil, err
		}
	} else if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ignore, err := NewIgnoreMatcher(splitList(cfg.IgnorePatterns)...)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return NewFromLayout(layout, BuildOptions{
		Driver: cfg.Driver,
		Logger: logger,
		Ignore: ignore,
		Files:  cfg.FileValidator(),
	}, logger)
}

// NewFromLayout builds every storage of layout and combines them. logger
// may be nil, in which case nothing is logged.
func NewFromLayout(layout *Layout, opts BuildOptions, logger *logrus.Logger) (*Service, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = discardLogger()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	storages := make(map[string]LibraryStorage, len(layout.Storages))
	for _, spec := range layout.Storages {
		storage, err := CreateStorage(ctx, spec, opts)
		if err != nil {
			cancel()
			return nil, err
		}
		storages[spec.Name] = storage
	}

	reads := make([]LibraryStorage, 0, len(layout.Read))
	for _, name := range layout.Read {
		reads = append(reads, storages[name])
	}

	logger.WithFields(logrus.Fields{
		"action":   "storage_init",
		"write":    layout.Write,
		"read":     layout.Read,
		"driver":   opts.Driver,
		"storages": len(storages),
	}).Info("library storage ready")

	return &Service{
		AggregatingStorage: NewAggregatingStorage(storages[layout.Write], reads, WithAggregateLogger(logger)),
		layout:             layout,
		storages:           storages,
		logger:             logger,
		cancel:             cancel,
	}, nil
}

// Storage returns the named storage of the layout.
func (s *Service) Storage(name string) (LibraryStorage, bool) {
	storage, ok := s.storages[name]
	return storage, ok
}

// Layout returns the layout the service was built from.
func (s *Service) Layout() *Layout {
	return s.layout
}

// Logger returns the service logger.
func (s *Service) Logger() *logrus.Logger {
	return s.logger
}

// Close stops directory watches.
func (s *Service) Close() error {
	s.cancel()
	return nil
}

// Default returns the global instance, initializing if needed with error handling
func Default() (*Service, error) {
	if defaultService == nil {
		if err := Init(); err != nil {
			return nil, err
		}
	}
	return defaultService, nil
}

// NewFromEnv creates instance from environment variables (convenience constructor)
func NewFromEnv() (*Service, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Reset clears the global instance (for testing)
func Reset() {
	if defaultService != nil {
		_ = defaultService.Close()
	}
	defaultService = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}
