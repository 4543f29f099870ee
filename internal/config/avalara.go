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

const defaultAvalaraTimeoutSeconds = 30

// AvalaraConfig carries the account settings for the remote tax service.
type AvalaraConfig struct {
	Endpoint       string
	AccountNumber  string
	LicenseKey     string
	CompanyCode    string
	TimeoutSeconds int
}

// Timeout is the per-request transport timeout. Zero means no client-side limit.
func (c AvalaraConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AvalaraConfigHolder struct {
	current atomic.Value // holds AvalaraConfig
}

// StaticAvalaraConfig wraps a fixed config; used by tests and embedders that
// manage credentials themselves.
func StaticAvalaraConfig(cfg AvalaraConfig) *AvalaraConfigHolder {
	holder := &AvalaraConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewAvalaraConfigHolder reads avalara.yml (or AVALARA_* env vars) and reloads
// it on change so credentials can be rotated without a restart.
func NewAvalaraConfigHolder(log *zap.Logger) (*AvalaraConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("avalara")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/taxbridge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AVALARA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("avalara.timeoutSeconds", defaultAvalaraTimeoutSeconds)
	for _, key := range []string{"endpoint", "accountNumber", "licenseKey", "companyCode", "timeoutSeconds"} {
		_ = v.BindEnv("avalara."+key, "AVALARA_"+strings.ToUpper(toSnake(key)))
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeAvalaraConfig(v)
	if err != nil {
		return nil, err
	}

	holder := StaticAvalaraConfig(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeAvalaraConfig(v)
			if err != nil {
				log.Warn("avalara config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("avalara config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *AvalaraConfigHolder) Get() AvalaraConfig {
	return h.current.Load().(AvalaraConfig)
}

func decodeAvalaraConfig(v *viper.Viper) (AvalaraConfig, error) {
	cfg := AvalaraConfig{
		Endpoint:       strings.TrimSpace(v.GetString("avalara.endpoint")),
		AccountNumber:  strings.TrimSpace(v.GetString("avalara.accountNumber")),
		LicenseKey:     strings.TrimSpace(v.GetString("avalara.licenseKey")),
		CompanyCode:    strings.TrimSpace(v.GetString("avalara.companyCode")),
		TimeoutSeconds: v.GetInt("avalara.timeoutSeconds"),
	}
	if err := ValidateAvalaraConfig(cfg); err != nil {
		return AvalaraConfig{}, err
	}
	return cfg, nil
}

func ValidateAvalaraConfig(cfg AvalaraConfig) error {
	if cfg.Endpoint == "" {
		return errors.New("avalara.endpoint is required")
	}
	if cfg.AccountNumber == "" {
		return errors.New("avalara.accountNumber is required")
	}
	if cfg.LicenseKey == "" {
		return errors.New("avalara.licenseKey is required")
	}
	if cfg.CompanyCode == "" {
		return errors.New("avalara.companyCode is required")
	}
	if cfg.TimeoutSeconds < 0 {
		return errors.New("avalara.timeoutSeconds cannot be negative")
	}
	return nil
}

func toSnake(key string) string {
	var sb strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
