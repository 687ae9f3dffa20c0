package readiness

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	acceptHTML  = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	maxBodySize = 10 << 20
)

type Response struct {
	StatusCode int
	Body       string
}

// Probe performs one GET. Non-2xx statuses are not errors.
type Probe interface {
	Get(ctx context.Context, url string, skipTLSVerify bool) (Response, error)
}

var newHTTPClient = func(timeout time.Duration, skipTLSVerify bool) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if skipTLSVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via skip-tls-verification
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

type HTTPProbe struct {
	timeout time.Duration
}

func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{timeout: DefaultAttemptTimeout}
}

func (p *HTTPProbe) Get(ctx context.Context, url string, skipTLSVerify bool) (Response, error) {
	if strings.TrimSpace(url) == "" {
		return Response{}, fmt.Errorf("missing url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHTML)

	resp, err := newHTTPClient(p.timeout, skipTLSVerify).Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

var _ Probe = (*HTTPProbe)(nil)
