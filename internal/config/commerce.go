package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CommerceConfig carries the storefront pricing rules that operators can
// tune without a redeploy.
type CommerceConfig struct {
	TaxRate               float64 `mapstructure:"taxRate"`
	FreeShippingThreshold float64 `mapstructure:"freeShippingThreshold"`
	FlatShippingFee       float64 `mapstructure:"flatShippingFee"`
	DefaultMinStock       int     `mapstructure:"defaultMinStock"`
}

func DefaultCommerceConfig() CommerceConfig {
	return CommerceConfig{
		TaxRate:               0.10,
		FreeShippingThreshold: 100,
		FlatShippingFee:       10,
		DefaultMinStock:       10,
	}
}

type CommerceConfigHolder struct {
	current atomic.Value // holds CommerceConfig
}

// NewStaticCommerceConfigHolder returns a holder that never reloads.
func NewStaticCommerceConfigHolder(cfg CommerceConfig) *CommerceConfigHolder {
	holder := &CommerceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCommerceConfigHolder(log *zap.Logger) (*CommerceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("commerce")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/backoffice/config") // Volume-mounted config
	v.AddConfigPath("/etc/backoffice")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCommerceConfig()
	v.SetDefault("commerce.taxRate", defaults.TaxRate)
	v.SetDefault("commerce.freeShippingThreshold", defaults.FreeShippingThreshold)
	v.SetDefault("commerce.flatShippingFee", defaults.FlatShippingFee)
	v.SetDefault("commerce.defaultMinStock", defaults.DefaultMinStock)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg CommerceConfig
	if err := v.UnmarshalKey("commerce", &cfg); err != nil {
		return nil, err
	}
	if err := validateCommerceConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCommerceConfigHolder(cfg)
	log = log.Named("commerce.config")

	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated CommerceConfig
			if err := v.UnmarshalKey("commerce", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateCommerceConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *CommerceConfigHolder) Get() CommerceConfig {
	return h.current.Load().(CommerceConfig)
}

func validateCommerceConfig(cfg CommerceConfig) error {
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return errors.New("commerce.taxRate must be in [0, 1)")
	}
	if cfg.FreeShippingThreshold < 0 {
		return errors.New("commerce.freeShippingThreshold cannot be negative")
	}
	if cfg.FlatShippingFee < 0 {
		return errors.New("commerce.flatShippingFee cannot be negative")
	}
	if cfg.DefaultMinStock < 0 {
		return errors.New("commerce.defaultMinStock cannot be negative")
	}
	return nil
}
