package browse

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/andybalholm/brotli"

	"newsarc/internal/config"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DetailFetcher retrieves article detail pages over plain HTTP. Detail
// pages are server-rendered, so no browser round-trip is needed for the
// fallback extraction pass.
type DetailFetcher struct {
	client *http.Client
	cfg    *config.FetcherConfig
	logger *slog.Logger
}

// NewDetailFetcher creates an HTTP fetcher for article pages.
func NewDetailFetcher(cfg *config.FetcherConfig, logger *slog.Logger) (*DetailFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecure,
		},
		DisableCompression: true, // We handle decompression ourselves (including brotli)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		Timeout:       cfg.ArticleTimeout,
		CheckRedirect: redirectPolicy,
	}

	return &DetailFetcher{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "detail_fetcher"),
	}, nil
}

// Fetch retrieves one article page, bounded by the per-article timeout.
func (f *DetailFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ArticleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(resp, reader)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("detail fetch complete",
		"url", rawURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return body, nil
}

// Close releases resources.
func (f *DetailFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
