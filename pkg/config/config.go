package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	// Platform holds credentials for the commerce platform admin API that
	// owns the discount resources and metafield slots.
	Platform struct {
		ShopID         string        `mapstructure:"SHOP_ID"`
		ShopDomain     string        `mapstructure:"SHOP_DOMAIN"`
		APIBase        string        `mapstructure:"API_BASE"`
		AccessToken    string        `mapstructure:"ACCESS_TOKEN"`
		RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	} `mapstructure:"PLATFORM"`
	Sync struct {
		SlotConcurrency int           `mapstructure:"SLOT_CONCURRENCY"`
		WriteTimeout    time.Duration `mapstructure:"WRITE_TIMEOUT"`
		ResyncDelay     time.Duration `mapstructure:"RESYNC_DELAY"`
		HandleCacheTTL  time.Duration `mapstructure:"HANDLE_CACHE_TTL"`
	} `mapstructure:"SYNC"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Platform.RequestTimeout <= 0 {
		cfg.Platform.RequestTimeout = 10 * time.Second
	}
	if cfg.Sync.SlotConcurrency <= 0 {
		cfg.Sync.SlotConcurrency = 4
	}
	if cfg.Sync.WriteTimeout <= 0 {
		cfg.Sync.WriteTimeout = 10 * time.Second
	}
	if cfg.Sync.ResyncDelay <= 0 {
		cfg.Sync.ResyncDelay = 5 * time.Minute
	}
	if cfg.Sync.HandleCacheTTL <= 0 {
		cfg.Sync.HandleCacheTTL = 10 * time.Minute
	}
}
