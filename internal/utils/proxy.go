package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"meta-relay/internal/config"
)

// NewHTTPClient returns the client used for outbound provider calls,
// routed through the configured proxy when one is enabled.
func NewHTTPClient(cfg config.ProxyConfig, timeout time.Duration) (*http.Client, error) {
	client := &http.Client{Timeout: timeout}

	if !cfg.Enabled {
		return client, nil
	}

	proxyURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if proxyURL.Scheme == "" || proxyURL.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL: %q", cfg.URL)
	}

	if cfg.Username != "" || cfg.Password != "" {
		proxyURL.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	client.Transport = &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
	}
	return client, nil
}
