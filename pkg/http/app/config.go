package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the free-form "app" section of the process config, handed to
// App.Init. Apps decode it with mapstructure.
type Config map[string]interface{}

// BaseConfig is the process level configuration shared by every app. Each
// key can be set in the config file or through its upper cased env var.
type BaseConfig struct {
	AppName  string `mapstructure:"app_name"`
	LogLevel string `mapstructure:"log_level"`

	ListenAddress      string `mapstructure:"listen_address"`
	DebugListenAddress string `mapstructure:"debug_listen_address"`

	// File URLs. TLS is disabled when no certificate is set.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ReadHeaderTimeout   time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Fraction of total memory held as GC ballast, capped at 0.5
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Cron schedule on which the process exits so leaked memory is reclaimed
	// by a restart
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ListenAddress:      ":8080",
	DebugListenAddress: ":8123",

	ReadHeaderTimeout:   5 * time.Second,
	ReadTimeout:         15 * time.Second,
	WriteTimeout:        60 * time.Second,
	IdleTimeout:         120 * time.Second,
	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   true,
	BallastCapacity: 0.333,

	MemoryLeakCronSchedule: "0 5 * * *",
}

var envBoundKeys = []string{
	"app_name",
	"log_level",
	"listen_address",
	"debug_listen_address",
	"tls_certificate",
	"tls_private_key",
	"read_header_timeout",
	"read_timeout",
	"write_timeout",
	"idle_timeout",
	"shutdown_grace_period",
	"enable_pprof",
	"enable_expvar",
	"enable_ballast",
	"ballast_capacity",
	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",
	"new_relic_license_key",
}

func init() {
	for _, key := range envBoundKeys {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}
