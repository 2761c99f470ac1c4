package config

import (
	"encoding/json"
	"os"

	"github.com/lettera/lettera/internal/flagx"
	"github.com/lettera/lettera/internal/timex"
)

// JsonConfig is the DTO for the optional JSON configuration file. It uses
// timex.Duration so interval fields accept both "336h" strings and integer
// nanoseconds. Values present in the file replace the defaults; absent
// fields leave them untouched.
type JsonConfig struct {
	EndpointAddrHTTP *string         `json:"endpoint_addr_http"`
	BaseURL          *string         `json:"base_url"`
	DatabaseDSN      *string         `json:"database_dsn"`
	RedisAddr        *string         `json:"redis_addr"`
	RedisPassword    *string         `json:"redis_password"`
	HMACKey          *string         `json:"hmac_key"`
	SessionTTL       *timex.Duration `json:"session_ttl"`
	CookieSecure     *bool           `json:"cookie_secure"`
	HashWorkers      *int            `json:"hash_workers"`
	EmailProvider    *string         `json:"email_provider"`
	MailgunDomain    *string         `json:"mailgun_domain"`
	MailgunAPIKey    *string         `json:"mailgun_api_key"`
	EmailSender      *string         `json:"email_sender"`
	EmailTimeout     *timex.Duration `json:"email_timeout"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If no file is given, nothing
// happens. An unreadable or malformed file panics: starting with half a
// configuration is worse than not starting.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.BaseURL != nil {
		config.BaseURL = *c.BaseURL
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.RedisAddr != nil {
		config.RedisAddr = *c.RedisAddr
	}
	if c.RedisPassword != nil {
		config.RedisPassword = *c.RedisPassword
	}
	if c.HMACKey != nil {
		config.HMACKey = *c.HMACKey
	}
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.HashWorkers != nil {
		config.HashWorkers = *c.HashWorkers
	}
	if c.EmailProvider != nil {
		config.EmailProvider = *c.EmailProvider
	}
	if c.MailgunDomain != nil {
		config.MailgunDomain = *c.MailgunDomain
	}
	if c.MailgunAPIKey != nil {
		config.MailgunAPIKey = *c.MailgunAPIKey
	}
	if c.EmailSender != nil {
		config.EmailSender = *c.EmailSender
	}
	if c.EmailTimeout != nil {
		config.EmailTimeout = c.EmailTimeout.Duration
	}
}
