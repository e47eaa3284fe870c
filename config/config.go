// Package config declares defenses and their counter store in YAML and
// builds them for a subject key.
//
// Durations are strings with a unit ("90s", "10m"); bare numbers are
// rejected.
//
// Example file:
//
//	store:
//	  type: redis
//	  key_prefix: "defense:"
//	  redis:
//	    addr: localhost:6379
//	  cleanup_interval: 30s
//	defenses:
//	  - name: login-lockout
//	    condition:
//	      or:
//	        - key: "login_fail:ip:{key}"
//	          threshold: 5
//	          timeout: 10m
//	        - key: "login_fail:global"
//	          threshold: 1000
//	          timeout: 1m
//	    action:
//	      response: locked
package config

import (
	"time"
)

// KeyPlaceholder is replaced by the subject key in counter key templates.
const KeyPlaceholder = "{key}"

// Config is the root of a defense configuration file.
type Config struct {
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Defenses []DefenseConfig `yaml:"defenses" mapstructure:"defenses" validate:"required,min=1,dive"`
}

// ServerConfig configures the demo HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	// CountStatus is the response status counted as a failure.
	CountStatus int `yaml:"count_status" mapstructure:"count_status" validate:"omitempty,min=100,max=599"`
}

// StoreConfig selects and configures the counter store.
type StoreConfig struct {
	Type            string        `yaml:"type" mapstructure:"type" validate:"required,oneof=memory redis sqlite"`
	KeyPrefix       string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	// CleanupInterval is how often expired counters are purged. Absent means
	// one minute; 0 disables the purge.
	CleanupInterval *time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,min=0"`
	Redis           RedisConfig   `yaml:"redis" mapstructure:"redis"`
	SQLite          SQLiteConfig  `yaml:"sqlite" mapstructure:"sqlite"`
}

// RedisConfig configures the Redis store. Used when Type is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db" validate:"min=0"`
}

// Cleanup returns the purge interval, 0 when unset.
func (c StoreConfig) Cleanup() time.Duration {
	if c.CleanupInterval == nil {
		return 0
	}
	return *c.CleanupInterval
}

// SQLiteConfig configures the SQLite store. Used when Type is "sqlite".
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DefenseConfig declares one defense: a condition tree and the action run
// when it is reached.
type DefenseConfig struct {
	Name      string          `yaml:"name" mapstructure:"name" validate:"required"`
	Condition ConditionConfig `yaml:"condition" mapstructure:"condition"`
	Action    ActionConfig    `yaml:"action" mapstructure:"action"`
}

// ConditionConfig is a node of a condition tree. Exactly one of Key, And
// and Or must be set; Key makes the node a simple counter condition.
type ConditionConfig struct {
	Key       string            `yaml:"key" mapstructure:"key"`
	Threshold int64             `yaml:"threshold" mapstructure:"threshold"`
	Timeout   time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	And       []ConditionConfig `yaml:"and" mapstructure:"and" validate:"omitempty,dive"`
	Or        []ConditionConfig `yaml:"or" mapstructure:"or" validate:"omitempty,dive"`
}

// ActionConfig declares the result of a fired defense, optionally throttled.
type ActionConfig struct {
	Response string          `yaml:"response" mapstructure:"response"`
	Throttle *ThrottleConfig `yaml:"throttle" mapstructure:"throttle"`
}

// ThrottleConfig limits how often an action may fire per window.
type ThrottleConfig struct {
	Key    string        `yaml:"key" mapstructure:"key" validate:"required"`
	Limit  int64         `yaml:"limit" mapstructure:"limit" validate:"min=1"`
	Window time.Duration `yaml:"window" mapstructure:"window" validate:"gt=0"`
}

// SetDefaults fills optional fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CountStatus == 0 {
		c.Server.CountStatus = 401
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Store.CleanupInterval == nil {
		interval := time.Minute
		c.Store.CleanupInterval = &interval
	}
	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.Type == "sqlite" && c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "defense.db"
	}
	for i := range c.Defenses {
		if c.Defenses[i].Action.Response == "" {
			c.Defenses[i].Action.Response = c.Defenses[i].Name
		}
	}
}
