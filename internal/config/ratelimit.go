package config

import "time"

// RateLimitConfig configures the Redis token bucket.  The general bucket
// covers every request; booking mutations (create and status changes)
// additionally draw from a smaller per-user bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// Booking returns the stricter bucket applied to booking writes.
func (c RateLimitConfig) Booking() RateLimitConfig {
	b := c
	b.Capacity = envInt("RATE_LIMIT_BOOKING_CAPACITY", 10)
	b.RefillInterval = envDur("RATE_LIMIT_BOOKING_REFILL_INTERVAL", 6*time.Second)
	b.RefillTokens = 1
	b.KeyStrategy = "user"
	b.Prefix = c.Prefix + ":booking"
	return b.normalize()
}

// LoadRateLimitConfig reads the general bucket.  It runs before JWT auth,
// so its key defaults to IP and route.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	return def.normalize()
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
