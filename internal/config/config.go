package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "YACALL"

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        LogConfig         `mapstructure:"log"`
	Directory  DirectoryConfig   `mapstructure:"directory"`
	Transport  TransportConfig   `mapstructure:"transport"`
	Calls      CallsConfig       `mapstructure:"calls"`
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
	SeedFile   string            `mapstructure:"seed_file"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DirectoryConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TransportConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	Rate         float64       `mapstructure:"rate"`
	Burst        int           `mapstructure:"burst"`
}

type CallsConfig struct {
	Strict      bool          `mapstructure:"strict"`
	RingTimeout time.Duration `mapstructure:"ring_timeout"`
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

var defaultSTUN = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// SetDefaults registers every key so env overrides and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.static_dir", "./public")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("directory.driver", DriverMemory)
	v.SetDefault("directory.dsn", "yacall.db")

	v.SetDefault("transport.read_limit", 64*1024)
	v.SetDefault("transport.write_timeout", 10*time.Second)
	v.SetDefault("transport.pong_wait", 60*time.Second)
	v.SetDefault("transport.rate", 50.0)
	v.SetDefault("transport.burst", 100)

	v.SetDefault("calls.strict", false)
	v.SetDefault("calls.ring_timeout", time.Duration(0))

	servers := make([]map[string]any, 0, len(defaultSTUN))
	for _, u := range defaultSTUN {
		servers = append(servers, map[string]any{"urls": []string{u}})
	}
	v.SetDefault("ice_servers", servers)
	v.SetDefault("seed_file", "")
}

// Load reads the optional config file, applies YACALL_* environment
// overrides and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	switch c.Directory.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Directory.DSN) == "" {
			errs = append(errs, errors.New("directory.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("directory.driver: unknown driver %q", c.Directory.Driver))
	}
	if c.Transport.ReadLimit <= 0 {
		errs = append(errs, errors.New("transport.read_limit must be positive"))
	}
	if c.Transport.Rate <= 0 || c.Transport.Burst <= 0 {
		errs = append(errs, errors.New("transport.rate and transport.burst must be positive"))
	}
	if c.Calls.RingTimeout < 0 {
		errs = append(errs, errors.New("calls.ring_timeout must not be negative"))
	}
	errs = append(errs, c.iceProblems()...)
	return errors.Join(errs...)
}
