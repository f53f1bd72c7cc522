package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// DefaultIPCheckServices answer with the caller's public IP, either as plain
// text or as httpbin's {"origin": ...} document.
var DefaultIPCheckServices = []string{
	"https://api.ipify.org",
	"https://httpbin.org/ip",
}

// EgressClient returns an HTTP client that leaves through proxyURL, the same
// proxy handed to Chrome. socks5 proxies go through an x/net dialer; http and
// https proxies use the transport's own proxy support. An empty proxyURL
// connects directly.
func EgressClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			dialer, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// EgressIP asks each service in turn for the public IP seen through client and
// returns the first answer. It returns "unknown" when no service answers.
func EgressIP(ctx context.Context, client *http.Client, services []string, logger *zap.Logger) string {
	for _, service := range services {
		ip, err := checkService(ctx, client, service)
		if err != nil {
			logger.Warn("failed to check IP",
				zap.String("service", service),
				zap.Error(err))
			continue
		}
		if ip != "" {
			logger.Info("egress IP",
				zap.String("ip", ip),
				zap.String("service", service))
			return ip
		}
	}

	logger.Warn("could not determine egress IP")
	return "unknown"
}

func checkService(ctx context.Context, client *http.Client, service string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return parseIPResponse(body), nil
}

func parseIPResponse(body []byte) string {
	var data struct {
		Origin string `json:"origin"`
	}
	if err := json.Unmarshal(body, &data); err == nil && data.Origin != "" {
		return strings.TrimSpace(data.Origin)
	}
	return strings.TrimSpace(string(body))
}
