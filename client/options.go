package client

// This file defines functional options that configure the Client during
// construction.

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mycelian/mycelian-desk/client/internal/shardqueue"
	"golang.org/x/oauth2"
)

// Option configures a Client during construction in New.
//
// Options are applied before the authorization transport is installed, so
// transport-related options end up underneath the bearer-token wrapper.
type Option func(*Client) error

// WithHTTPTimeout sets the underlying http.Client Timeout. Prefer per-request
// context deadlines; this is a coarse upper bound. Must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.Timeout = d
		return nil
	}
}

// WithHTTPClient replaces the underlying http.Client. Its transport is
// wrapped, not replaced, by the client's auth and metrics layers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		cp := *hc
		if c.http != nil && cp.Timeout == 0 {
			cp.Timeout = c.http.Timeout
		}
		if dt, ok := c.http.Transport.(*debugTransport); ok {
			dt.base = cp.Transport
			cp.Transport = dt
		}
		c.http = &cp
		return nil
	}
}

// WithDebugLogging wraps the client's transport so each request/response is
// dumped at debug level. Dumps include bodies; do not enable in production.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if !enabled {
			return nil
		}
		if _, already := c.http.Transport.(*debugTransport); already {
			return nil
		}
		c.http.Transport = &debugTransport{base: c.http.Transport}
		return nil
	}
}

// WithTokenSource authenticates with tokens from src instead of a static token.
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(c *Client) error {
		if src == nil {
			return fmt.Errorf("token source cannot be nil")
		}
		c.tokenSource = src
		return nil
	}
}

// WithExecutorConfig tunes the per-task mutation lanes.
func WithExecutorConfig(cfg shardqueue.Config) Option {
	return func(c *Client) error {
		c.execCfg = &cfg
		return nil
	}
}
