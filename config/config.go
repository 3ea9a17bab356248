package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// defaults holds the value of every configuration key when neither the
// environment nor the optional config file provides one.
var defaults = map[string]interface{}{
	"SERVICE_NAME":                    "micromeda-server",
	"SERVICE_NAME_AS_ROOT":            false,
	"SERVER_LISTEN_ADDRESS":           "0.0.0.0",
	"SERVER_LISTEN_PORT":              "5000",
	"SERVER_SHUTDOWN_GRACE_PERIOD_MS": 10000,
	"GRPC_ENABLED":                    false,
	"GRPC_SERVER_LISTEN_ADDRESS":      "0.0.0.0",
	"GRPC_SERVER_LISTEN_PORT":         "5001",
	"GRPC_CONNECT_TIMEOUT_MS":         5000,

	"LOG_LEVEL":           4,
	"STACKDRIVER_ENABLED": false,
	"PROJECT_ID":          "",

	"REDIS_URL":             "redis://localhost:6379/0",
	"REDIS_SENTINEL_MASTER": "",
	"REDIS_CLUSTER_ADDRS":   "",
	"REDIS_PASSWORD":        "",
	"REDIS_POOLSIZE":        10,
	"REDIS_IDLE_TIMEOUT_MS": 60000,

	"GENOME_PROPERTIES_FILE":    "genomeProperties.txt",
	"DEFAULT_RESULTS_FILE":      "",
	"UPLOAD_FOLDER":             os.TempDir(),
	"MAX_UPLOAD_BYTES":          64 << 20,
	"RESULTS_CACHE_TTL_SECONDS": 3600,
	"RESULTS_LRU_SIZE":          32,
	"RESPONSE_CACHE_TTL_MS":     600000,

	"DATABASE_ENABLED":  false,
	"DATABASE_DIALECT":  "sqlite",
	"DATABASE_USERNAME": "",
	"DATABASE_PASSWORD": "",
	"DATABASE_HOST":     "",
	"DATABASE_PORT":     "3306",
	"DATABASE_NAME":     "micromeda.db",

	"UPLOAD_PURGE_INTERVAL_MS": 600000,
}

var v = newViper()

func newViper() *viper.Viper {
	instance := viper.New()
	for key, value := range defaults {
		instance.SetDefault(key, value)
	}
	instance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	instance.AutomaticEnv()

	// An optional YAML file may override the defaults; the environment
	// still takes precedence over both.
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		instance.SetConfigType("yaml")
		instance.SetConfigFile(file)
		if err := instance.ReadInConfig(); err != nil {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}
	return instance
}

// Set overrides a configuration value, mostly useful in tests.
func Set(key string, value interface{}) {
	v.Set(key, value)
}

// GetString returns the value of the key as a string.
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt returns the value of the key as an int.
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetInt64 returns the value of the key as an int64.
func GetInt64(key string) int64 {
	return v.GetInt64(key)
}

// GetUint returns the value of the key as an uint.
func GetUint(key string) uint {
	return v.GetUint(key)
}

// GetBool returns the value of the key as a bool.
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetMilliseconds interprets the value of the key as a number of
// milliseconds and returns it as a duration.
func GetMilliseconds(key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

// GetSeconds interprets the value of the key as a number of seconds and
// returns it as a duration.
func GetSeconds(key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Second
}
