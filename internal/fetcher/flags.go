package fetcher

import (
	"net/http"
	"time"
)

// Flags is the command line option group of the fetcher.
type Flags struct {
	BaseURL         string        `long:"base-url"         env:"BASE_URL"         description:"Origin relative layer URLs resolve against"`
	PublicDir       string        `long:"public-dir"       env:"PUBLIC_DIR"       description:"Directory relative layer URLs are read from when no base URL is set" default:"public"`
	Origin          string        `long:"origin"           env:"ORIGIN"           description:"Origin header sent on cross-origin requests"`
	Timeout         time.Duration `long:"fetch-timeout"    env:"FETCH_TIMEOUT"    description:"Timeout of a single fetch" default:"30s"`
	BreakerFailures uint32        `long:"breaker-failures" env:"BREAKER_FAILURES" description:"Consecutive failures opening a host circuit, 0 disables"`
	BreakerTimeout  time.Duration `long:"breaker-timeout"  env:"BREAKER_TIMEOUT"  description:"Time an open circuit waits before probing" default:"30s"`
}

// Options converts the flags into client options.
func (f Flags) Options(userAgent string) Options {
	return Options{
		HTTPClient:      &http.Client{Timeout: f.Timeout},
		BaseURL:         f.BaseURL,
		PublicDir:       f.PublicDir,
		Origin:          f.Origin,
		UserAgent:       userAgent,
		BreakerFailures: f.BreakerFailures,
		BreakerTimeout:  f.BreakerTimeout,
	}
}
