package config

import (
	"flag"
	"os"
	"time"

	"github.com/lettera/lettera/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-u string   externally visible base URL
//	-d string   PostgreSQL DSN
//	-r string   Redis address
//	-s string   HMAC signing key
//	-t int      session TTL, hours
//	-w int      password hash worker count
//	-secure     set the Secure attribute on session cookies
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-u", "-d", "-r", "-s", "-t", "-w", "-secure"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "base URL used in confirmation links")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.HMACKey, "s", config.HMACKey, "HMAC signing key")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Hours()), "session TTL (in hours)")
	fs.IntVar(&config.HashWorkers, "w", config.HashWorkers, "password hash worker count")
	fs.BoolVar(&config.CookieSecure, "secure", config.CookieSecure, "set Secure on session cookies")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// The hours flag only overrides the TTL when it was actually passed.
	// Its default is a truncated view of config.SessionTTL, so writing it
	// back unconditionally would zero a sub-hour TTL set via JSON.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SessionTTL = time.Duration(*sessionTTL) * time.Hour
		}
	})
}
