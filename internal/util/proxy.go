package util

import (
	"fmt"
	"net/http"
	"net/url"
)

// NewProxyFunc creates a proxy function based on configuration.
// If no proxy URLs are provided, falls back to environment variables.
// Proxy URLs are parsed once so a typo fails at startup rather than per request.
func NewProxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	httpURL, err := parseProxy(httpProxy)
	if err != nil {
		return nil, fmt.Errorf("http proxy: %w", err)
	}
	httpsURL, err := parseProxy(httpsProxy)
	if err != nil {
		return nil, fmt.Errorf("https proxy: %w", err)
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsURL != nil {
			return httpsURL, nil
		}
		if httpURL != nil {
			return httpURL, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}

func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy %q must be an absolute URL", raw)
	}
	return u, nil
}
