// internal/workers/priorauth/notify-outcome/config.go
package notifyoutcome

import (
	"time"

	"priorauth-engine/internal/common/config"
)

type Config struct {
	EmailEnabled  bool
	SMSEnabled    bool
	FromEmail     string
	ReviewerEmail string
	ReviewerPhone string
	AWSRegion     string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

// FromNotifications builds the worker config from the application
// notification settings.
func FromNotifications(cfg config.NotificationConfig) *Config {
	c := LoadConfig()
	c.EmailEnabled = cfg.Email.Enabled
	c.FromEmail = cfg.Email.FromEmail
	c.ReviewerEmail = cfg.Email.ReviewerTo
	c.SMSEnabled = cfg.SMS.Enabled
	c.ReviewerPhone = cfg.SMS.ReviewerTel
	c.AWSRegion = cfg.AWS.Region
	return c
}
