// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fawa-io/katalog/pkg/fwlog"
)

type Config struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	LogLevel string `mapstructure:"logLevel"`
	LogFile  string `mapstructure:"logFile"`

	// CORSOrigins lists the origins allowed to call the API.
	CORSOrigins []string `mapstructure:"corsOrigins"`
	// BodyLimit caps request bodies, e.g. "10M".
	BodyLimit string `mapstructure:"bodyLimit"`

	KV       KV       `mapstructure:"kv"`
	Blob     Blob     `mapstructure:"blob"`
	Identity Identity `mapstructure:"identity"`
	Auth     Auth     `mapstructure:"auth"`
	Sweeper  Sweeper  `mapstructure:"sweeper"`
}

// KV selects and configures the key/value table driver.
type KV struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RedisAddr string `mapstructure:"redisAddr"`
	BoltPath  string `mapstructure:"boltPath"`
}

type Blob struct {
	Endpoint     string        `mapstructure:"endpoint"`
	AccessKey    string        `mapstructure:"accessKey"`
	SecretKey    string        `mapstructure:"secretKey"`
	Bucket       string        `mapstructure:"bucket"`
	Region       string        `mapstructure:"region"`
	UseSSL       bool          `mapstructure:"useSSL"`
	SignedURLTTL time.Duration `mapstructure:"signedURLTTL"`
}

type Identity struct {
	Driver     string        `mapstructure:"driver"`
	JWTSecret  string        `mapstructure:"jwtSecret"`
	TokenTTL   time.Duration `mapstructure:"tokenTTL"`
	GoTrueURL  string        `mapstructure:"gotrueURL"`
	ServiceKey string        `mapstructure:"serviceKey"`
}

type Auth struct {
	RateLimit float64 `mapstructure:"rateLimit"`
	RateBurst int     `mapstructure:"rateBurst"`
}

// Sweeper drives the orphaned image reconciliation job. An empty
// Schedule disables it.
type Sweeper struct {
	Schedule string        `mapstructure:"schedule"`
	Grace    time.Duration `mapstructure:"grace"`
}

var (
	once sync.Once

	mu sync.RWMutex

	config Config
)

func InitConfig() error {
	var initErr error
	once.Do(func() {
		initErr = LoadAndWatch()
	})
	return initErr
}

func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("certFile", "")
	v.SetDefault("keyFile", "")
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFile", "")
	v.SetDefault("corsOrigins", []string{"*"})
	v.SetDefault("bodyLimit", "10M")

	v.SetDefault("kv.driver", "postgres")
	v.SetDefault("kv.dsn", "")
	v.SetDefault("kv.table", "kv_store")
	v.SetDefault("kv.redisAddr", "localhost:6379")
	v.SetDefault("kv.boltPath", "./data/katalog.db")

	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.accessKey", "")
	v.SetDefault("blob.secretKey", "")
	v.SetDefault("blob.bucket", "products")
	v.SetDefault("blob.useSSL", false)
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.signedURLTTL", time.Hour)

	v.SetDefault("identity.driver", "local")
	v.SetDefault("identity.jwtSecret", "")
	v.SetDefault("identity.gotrueURL", "")
	v.SetDefault("identity.serviceKey", "")
	v.SetDefault("identity.tokenTTL", time.Hour)

	v.SetDefault("auth.rateLimit", 1.0)
	v.SetDefault("auth.rateBurst", 5)

	v.SetDefault("sweeper.schedule", "")
	v.SetDefault("sweeper.grace", time.Hour)
}

// BindEnv lets KATALOG_<SECTION>_<KEY> variables override every key
// registered by SetDefaults, e.g. KATALOG_KV_DSN for kv.dsn. Unmarshal only
// sees keys viper already knows, so every key needs a default.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("KATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate reports configuration that cannot produce a working server.
func (c Config) Validate() error {
	switch c.KV.Driver {
	case "postgres":
		if c.KV.DSN == "" {
			return errors.New("kv.dsn is required for the postgres driver")
		}
	case "redis", "bolt", "memory":
	default:
		return fmt.Errorf("unknown kv.driver %q", c.KV.Driver)
	}
	if c.Blob.Endpoint == "" || c.Blob.Bucket == "" {
		return errors.New("blob.endpoint and blob.bucket are required")
	}
	if c.Blob.SignedURLTTL <= 0 {
		return errors.New("blob.signedURLTTL must be positive")
	}
	switch c.Identity.Driver {
	case "local":
		if c.Identity.JWTSecret == "" {
			return errors.New("identity.jwtSecret is required for the local identity driver")
		}
	case "gotrue":
		if c.Identity.GoTrueURL == "" || c.Identity.ServiceKey == "" {
			return errors.New("identity.gotrueURL and identity.serviceKey are required for the gotrue driver")
		}
	default:
		return fmt.Errorf("unknown identity.driver %q", c.Identity.Driver)
	}
	return nil
}

func LoadAndWatch() error {
	if err := godotenv.Load(); err == nil {
		fwlog.Infof("Loaded environment from .env")
	}

	pflag.String("addr", "", "HTTP service address (e.g., '127.0.0.1:8080')")
	pflag.String("certFile", "", "Path to the TLS certificate file.")
	pflag.String("keyFile", "", "Path to the TLS private key file.")
	pflag.String("logLevel", "", "Log level: debug, info, warn, error.")
	pflag.String("kv.driver", "", "Key/value driver: postgres, redis, bolt or memory.")
	pflag.String("kv.dsn", "", "PostgreSQL DSN for the postgres driver.")
	pflag.Parse()

	v := viper.GetViper()
	SetDefaults(v)

	// Only flags the operator actually set override the file and the defaults.
	var bindErr error
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind pflags: %w", bindErr)
	}

	BindEnv(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/katalog/")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fwlog.Infof("Config file not found.")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	mu.Lock()
	if err := v.Unmarshal(&config); err != nil {
		mu.Unlock()
		return fmt.Errorf("the initial configuration cannot be decoded into the struct: %w", err)
	}
	mu.Unlock()

	v.OnConfigChange(func(e fsnotify.Event) {
		fwlog.Infof("config file %s changed, reloading", e.Name)

		mu.Lock()
		defer mu.Unlock()

		if err := v.Unmarshal(&config); err != nil {
			fwlog.Errorf("Error while reloading config: %v", err)
			return
		}
		newLogLevel, err := fwlog.ParseLevel(config.LogLevel)
		if err != nil {
			fwlog.Warnf("New log level in config is invalid: %v. Keeping previous level.", err)
			return
		}
		fwlog.SetLevel(newLogLevel)
		fwlog.Infof("Log level reloaded successfully to: %s", newLogLevel)
	})
	v.WatchConfig()

	return nil
}
