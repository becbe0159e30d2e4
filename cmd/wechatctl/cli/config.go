package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/tidewave/wechatgo/pkg/store"
	"github.com/tidewave/wechatgo/pkg/wechat"
)

// Config holds all wechatctl configuration
type Config struct {
	// Application credentials
	AppID          string
	AppSecret      string
	Token          string
	EncodingAESKey string

	// Credential cache
	CacheBackend  string // "memory" or "redis"
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	// Refresh policy
	RefreshMarginSeconds int

	// Webhook server
	HTTPAddress string
}

// LoadConfig loads configuration from files and environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"AppID":                "WECHAT_APP_ID",
		"AppSecret":            "WECHAT_APP_SECRET",
		"Token":                "WECHAT_TOKEN",
		"EncodingAESKey":       "WECHAT_ENCODING_AES_KEY",
		"CacheBackend":         "WECHAT_CACHE_BACKEND",
		"RedisAddr":            "WECHAT_REDIS_ADDR",
		"RedisUsername":        "WECHAT_REDIS_USERNAME",
		"RedisPassword":        "WECHAT_REDIS_PASSWORD",
		"RedisDB":              "WECHAT_REDIS_DB",
		"RefreshMarginSeconds": "WECHAT_REFRESH_MARGIN_SECONDS",
		"HTTPAddress":          "WECHAT_HTTP_ADDRESS",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("wechatctl_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.wechatctl")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CacheBackend", "memory")
	v.SetDefault("RedisAddr", "localhost:6379")
	v.SetDefault("RefreshMarginSeconds", 300)
	v.SetDefault("HTTPAddress", ":8080")
}

func validateConfig(config *Config) error {
	var missingVars []string

	if config.AppID == "" {
		missingVars = append(missingVars, "WECHAT_APP_ID")
	}
	if config.AppSecret == "" {
		missingVars = append(missingVars, "WECHAT_APP_SECRET")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missingVars, ", "))
	}

	switch config.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q, expected memory or redis", config.CacheBackend)
	}

	return nil
}

// newClient builds a WeChat client from the loaded configuration.
func newClient(config *Config) (*wechat.Client, error) {
	var cache store.Store
	if config.CacheBackend == "redis" {
		cache = store.NewRedisStoreFromOptions(store.RedisOptions{
			Addr:     config.RedisAddr,
			Username: config.RedisUsername,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		log.Debug().Str("addr", config.RedisAddr).Msg("using redis credential cache")
	} else {
		cache = store.NewMemoryStore()
	}

	return wechat.NewClient(
		wechat.AppCredentials{
			AppID:          config.AppID,
			AppSecret:      config.AppSecret,
			Token:          config.Token,
			EncodingAESKey: config.EncodingAESKey,
		},
		wechat.WithStore(cache),
		wechat.WithSafetyMargin(time.Duration(config.RefreshMarginSeconds)*time.Second),
	)
}
