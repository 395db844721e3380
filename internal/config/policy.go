package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PurchasePolicy holds the purchase rules that operators may change at runtime.
type PurchasePolicy struct {
	OrderPrefix    string `mapstructure:"orderPrefix"`
	VerifyAmount   bool   `mapstructure:"verifyAmount"`
	ItemNameFormat string `mapstructure:"itemNameFormat"`
	MaxAmount      int64  `mapstructure:"maxAmount"`
}

func DefaultPurchasePolicy() PurchasePolicy {
	return PurchasePolicy{
		OrderPrefix:    "FOTOYOU",
		VerifyAmount:   true,
		ItemNameFormat: "Unlock Watermark: %s",
		MaxAmount:      0,
	}
}

type PurchasePolicyHolder struct {
	current atomic.Value // holds PurchasePolicy
}

func NewPurchasePolicyHolder() (*PurchasePolicyHolder, error) {
	return newPurchasePolicyHolder("/var/lib/fotoyou/config", "/etc/fotoyou", ".")
}

// NewStaticPurchasePolicy returns a holder that never reloads.
func NewStaticPurchasePolicy(policy PurchasePolicy) *PurchasePolicyHolder {
	holder := &PurchasePolicyHolder{}
	holder.current.Store(normalizePurchasePolicy(policy))
	return holder
}

func newPurchasePolicyHolder(paths ...string) (*PurchasePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("purchase")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("FOTOYOU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPurchasePolicy()
	v.SetDefault("purchase.orderPrefix", defaults.OrderPrefix)
	v.SetDefault("purchase.verifyAmount", defaults.VerifyAmount)
	v.SetDefault("purchase.itemNameFormat", defaults.ItemNameFormat)
	v.SetDefault("purchase.maxAmount", defaults.MaxAmount)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	var policy PurchasePolicy
	if err := v.UnmarshalKey("purchase", &policy); err != nil {
		return nil, err
	}
	policy = normalizePurchasePolicy(policy)
	if err := validatePurchasePolicy(policy); err != nil {
		return nil, err
	}

	holder := &PurchasePolicyHolder{}
	holder.current.Store(policy)

	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PurchasePolicy
		if err := v.UnmarshalKey("purchase", &updated); err != nil {
			log.Printf("[purchase-policy] reload failed: %v", err)
			return
		}
		updated = normalizePurchasePolicy(updated)
		if err := validatePurchasePolicy(updated); err != nil {
			log.Printf("[purchase-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[purchase-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PurchasePolicyHolder) Get() PurchasePolicy {
	if h == nil {
		return DefaultPurchasePolicy()
	}
	policy, ok := h.current.Load().(PurchasePolicy)
	if !ok {
		return DefaultPurchasePolicy()
	}
	return policy
}

func normalizePurchasePolicy(policy PurchasePolicy) PurchasePolicy {
	policy.OrderPrefix = strings.TrimSpace(policy.OrderPrefix)
	policy.ItemNameFormat = strings.TrimSpace(policy.ItemNameFormat)
	if policy.ItemNameFormat == "" {
		policy.ItemNameFormat = DefaultPurchasePolicy().ItemNameFormat
	}
	return policy
}

func validatePurchasePolicy(policy PurchasePolicy) error {
	if policy.OrderPrefix == "" {
		return errors.New("purchase.orderPrefix cannot be empty")
	}
	if strings.Contains(policy.OrderPrefix, "-") {
		return errors.New("purchase.orderPrefix cannot contain '-'")
	}
	if policy.MaxAmount < 0 {
		return errors.New("purchase.maxAmount cannot be negative")
	}
	if strings.Count(policy.ItemNameFormat, "%s") != 1 {
		return errors.New("purchase.itemNameFormat must contain exactly one %s")
	}
	return nil
}
