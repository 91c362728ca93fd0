package config

import "time"

// Config holds rate limiting configuration.
type Config struct {
	// Composite notification check: user, then device, then global.
	Notification NotificationLimits `mapstructure:"notification"`

	// Per-user action caps over longer windows.
	Hourly WindowLimit `mapstructure:"hourly"`
	Daily  WindowLimit `mapstructure:"daily"`

	// AtomicIncrement switches fixed-window counters to the store's single
	// round-trip increment-with-expiry when the store supports it.
	AtomicIncrement bool `mapstructure:"atomic_increment"`

	// Buckets are named token-bucket presets used by the HTTP middleware.
	Buckets map[string]BucketPreset `mapstructure:"buckets" validate:"dive"`
}

// NotificationLimits are the per-scope caps of the notification check.
type NotificationLimits struct {
	UserPerMinute   int `mapstructure:"user_per_minute" validate:"min=1"`
	DevicePerMinute int `mapstructure:"device_per_minute" validate:"min=1"`
	GlobalPerSecond int `mapstructure:"global_per_second" validate:"min=1"`
}

// WindowLimit defines a fixed-window cap.
type WindowLimit struct {
	Limit  int           `mapstructure:"limit" validate:"min=1"`
	Window time.Duration `mapstructure:"window" validate:"min=1s"`
}

// BucketPreset defines token-bucket parameters for a named resource.
type BucketPreset struct {
	Capacity   int           `mapstructure:"capacity" validate:"min=1"`
	RefillRate float64       `mapstructure:"refill_rate" validate:"gt=0"`
	Interval   time.Duration `mapstructure:"interval" validate:"min=1ms"`
}

// Bucket preset names used by the router.
const (
	BucketUpload = "upload"
	BucketExport = "export"
	BucketAI     = "ai"
)

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Notification: NotificationLimits{
			UserPerMinute:   10,
			DevicePerMinute: 5,
			GlobalPerSecond: 1000,
		},
		Hourly: WindowLimit{Limit: 100, Window: time.Hour},
		Daily:  WindowLimit{Limit: 500, Window: 24 * time.Hour},
		Buckets: map[string]BucketPreset{
			BucketUpload: {Capacity: 10, RefillRate: 1, Interval: 6 * time.Second},
			BucketExport: {Capacity: 3, RefillRate: 1, Interval: time.Minute},
			BucketAI:     {Capacity: 20, RefillRate: 5, Interval: time.Minute},
		},
	}
}

// Bucket returns the named preset.
func (c *Config) Bucket(name string) (BucketPreset, bool) {
	p, ok := c.Buckets[name]
	return p, ok
}
