package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EngineConfig tunes the GDD recalculation engine. It is hot reloadable.
// MaxPasses caps recalculation passes below the weather-row bound; zero
// leaves only that bound.
type EngineConfig struct {
	MaxPasses       int           `mapstructure:"maxPasses"`
	LockTTL         time.Duration `mapstructure:"lockTTL"`
	LockWait        time.Duration `mapstructure:"lockWait"`
	InsertBatchSize int           `mapstructure:"insertBatchSize"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LockTTL:         2 * time.Minute,
		LockWait:        30 * time.Second,
		InsertBatchSize: 500,
	}
}

// WithDefaults fills zero values from DefaultEngineConfig.
func (c EngineConfig) WithDefaults() EngineConfig {
	defaults := DefaultEngineConfig()
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockWait <= 0 {
		c.LockWait = defaults.LockWait
	}
	if c.InsertBatchSize <= 0 {
		c.InsertBatchSize = defaults.InsertBatchSize
	}
	return c
}

type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

// NewStaticEngineConfigHolder returns a holder that never reloads.
func NewStaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg.WithDefaults())
	return holder
}

func NewEngineConfigHolder(log *zap.Logger) (*EngineConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.engine")

	v := viper.New()

	v.SetConfigName("gdd")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/turfkeeper")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TURFKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	v.SetDefault("engine.maxPasses", 0)
	v.SetDefault("engine.lockTTL", defaults.LockTTL)
	v.SetDefault("engine.lockWait", defaults.LockWait)
	v.SetDefault("engine.insertBatchSize", defaults.InsertBatchSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg EngineConfig
	if err := v.UnmarshalKey("engine", &cfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(cfg.WithDefaults())

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			log.Warn("engine config reload failed", zap.Error(err))
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			log.Warn("engine config invalid, ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated.WithDefaults())
		log.Info("engine config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// Get returns the current engine config; a nil holder yields defaults.
func (h *EngineConfigHolder) Get() EngineConfig {
	if h == nil {
		return DefaultEngineConfig()
	}
	cfg, ok := h.current.Load().(EngineConfig)
	if !ok {
		return DefaultEngineConfig()
	}
	return cfg
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.MaxPasses < 0 {
		return errors.New("engine.maxPasses cannot be negative")
	}
	if cfg.InsertBatchSize < 0 {
		return errors.New("engine.insertBatchSize cannot be negative")
	}
	return nil
}
