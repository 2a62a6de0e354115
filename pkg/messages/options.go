package messages

import (
	"time"

	"github.com/zfogg/feedsync/pkg/config"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultMaxSendAttempts = 3
	DefaultRetryBaseDelay  = 500 * time.Millisecond
)

// Options configures polling and send retries. Zero values are replaced with
// defaults.
type Options struct {
	ViewerID        string
	PollInterval    time.Duration
	MaxSendAttempts int
	RetryBaseDelay  time.Duration
}

// OptionsFromConfig reads Options from the loaded configuration. ViewerID is
// left for the caller to fill in.
func OptionsFromConfig() Options {
	return Options{
		PollInterval:    config.GetSeconds("messages.poll_interval"),
		MaxSendAttempts: config.GetInt("messages.max_send_attempts"),
		RetryBaseDelay:  config.GetMillis("messages.retry_base_delay_ms"),
	}
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxSendAttempts <= 0 {
		o.MaxSendAttempts = DefaultMaxSendAttempts
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return o
}

// backoff returns the wait before the attempt after the given one
func (o Options) backoff(attempt int) time.Duration {
	return o.RetryBaseDelay << (attempt - 1)
}
