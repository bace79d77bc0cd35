package config

import (
	"strings"
	"time"
)

// PricingConfig is the platform fee schedule.
type PricingConfig struct {
	ServiceFeeBps        int64 // SERVICE_FEE_BPS, basis points of the base price
	InsurancePerDayCents int64 // INSURANCE_PER_DAY_CENTS
}

// LoadPricingConfig defaults to a 10% service fee and no insurance.
// Negative values are clamped to zero.
func LoadPricingConfig() PricingConfig {
	c := PricingConfig{
		ServiceFeeBps:        envInt64("SERVICE_FEE_BPS", 1000),
		InsurancePerDayCents: envInt64("INSURANCE_PER_DAY_CENTS", 0),
	}
	if c.ServiceFeeBps < 0 {
		c.ServiceFeeBps = 0
	}
	if c.InsurancePerDayCents < 0 {
		c.InsurancePerDayCents = 0
	}
	return c
}

// MailConfig configures the SMTP sender used for booking confirmations.
// An empty Host disables email.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
	Timeout  time.Duration
}

// Enabled reports whether enough is configured to send mail.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.From != ""
}

func LoadMailConfig() MailConfig {
	return MailConfig{
		Host:     strings.TrimSpace(envStr("SMTP_HOST", "")),
		Port:     envInt("SMTP_PORT", 587),
		Username: envStr("SMTP_USERNAME", ""),
		Password: envStr("SMTP_PASSWORD", ""),
		From:     envStr("SMTP_FROM", ""),
		TLS:      envBool("SMTP_TLS", true),
		Timeout:  envDur("SMTP_TIMEOUT", 10*time.Second),
	}
}

// JobsConfig controls background maintenance jobs.
type JobsConfig struct {
	Enabled        bool          // JOBS_ENABLED
	ExpireInterval time.Duration // JOBS_EXPIRE_INTERVAL
}

func LoadJobsConfig() JobsConfig {
	c := JobsConfig{
		Enabled:        envBool("JOBS_ENABLED", true),
		ExpireInterval: envDur("JOBS_EXPIRE_INTERVAL", 15*time.Minute),
	}
	if c.ExpireInterval < time.Minute {
		c.ExpireInterval = time.Minute
	}
	return c
}

// EventsConfig tunes the in-process event bus and broker forwarding.
type EventsConfig struct {
	HandlerTimeout  time.Duration // EVENT_HANDLER_TIMEOUT
	Queue           string        // BOOKING_EVENTS_QUEUE
	AuditLogPath    string        // BOOKING_AUDIT_LOG
	ConsumerEnabled bool          // BOOKING_CONSUMER_ENABLED
}

func LoadEventsConfig() EventsConfig {
	return EventsConfig{
		HandlerTimeout:  envDur("EVENT_HANDLER_TIMEOUT", 5*time.Second),
		Queue:           envStr("BOOKING_EVENTS_QUEUE", "booking.events"),
		AuditLogPath:    envStr("BOOKING_AUDIT_LOG", "logs/booking.log"),
		ConsumerEnabled: envBool("BOOKING_CONSUMER_ENABLED", true),
	}
}
