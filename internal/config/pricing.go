package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingConfig carries the order-level rates applied by the pricing engine.
// One rate per deployment; call sites never hard-code these.
type PricingConfig struct {
	EcoDiscountRate float64 `mapstructure:"ecoDiscountRate"`
	TaxRate         float64 `mapstructure:"taxRate"`
	ShippingCost    float64 `mapstructure:"shippingCost"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		EcoDiscountRate: 0.05,
		TaxRate:         0.18,
		ShippingCost:    0,
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingConfigHolder loads pricing.yml and keeps it hot-reloaded.
func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/backoffice/config") // Volume-mounted config
	v.AddConfigPath("/etc/backoffice")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.ecoDiscountRate", defaults.EcoDiscountRate)
	v.SetDefault("pricing.taxRate", defaults.TaxRate)
	v.SetDefault("pricing.shippingCost", defaults.ShippingCost)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingConfigHolder pins the holder to a fixed config, with no
// file watching. Used by tests and one-off tooling.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.EcoDiscountRate < 0 || cfg.EcoDiscountRate >= 1 {
		return errors.New("pricing.ecoDiscountRate must be in [0, 1)")
	}
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return errors.New("pricing.taxRate must be in [0, 1)")
	}
	if cfg.ShippingCost < 0 {
		return errors.New("pricing.shippingCost cannot be negative")
	}
	return nil
}
