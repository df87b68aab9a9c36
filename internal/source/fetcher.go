// Package source retrieves the live auction catalog.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"auctionwatch/internal/catalog"
	logx "auctionwatch/pkg/logx"
)

const (
	DefaultURL       = "https://www.hetzner.com/_resources/app/jsondata/live_data_sb.json"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.79 Safari/537.36"
	DefaultTimeout   = 30 * time.Second

	maxBody = 64 << 20
)

type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// FetchError reports a failed catalog fetch. Status is 0 when no HTTP
// response was received.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads and decodes the catalog. It never retries; the next
// scheduled tick does.
type Fetcher struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
	now    func() time.Time
}

func New(cfg Config, client *http.Client, log logx.Logger) *Fetcher {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		cfg:    cfg,
		client: client,
		log:    log.With(logx.String("comp", "source")),
		now:    time.Now,
	}
}

// Fetch returns the current catalog snapshot or a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context) (catalog.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return catalog.Snapshot{}, &FetchError{URL: f.cfg.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return catalog.Snapshot{}, &FetchError{URL: f.cfg.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return catalog.Snapshot{}, &FetchError{URL: f.cfg.URL, Status: resp.StatusCode, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	if err != nil {
		return catalog.Snapshot{}, &FetchError{URL: f.cfg.URL, Status: resp.StatusCode, Err: err}
	}

	listings, err := Decode(body)
	if err != nil {
		return catalog.Snapshot{}, &FetchError{URL: f.cfg.URL, Status: resp.StatusCode, Err: err}
	}
	snap := catalog.NewSnapshot(listings, f.now())
	f.log.Debug("catalog fetched",
		logx.Int("listings", snap.Len()),
		logx.String("fingerprint", snap.Fingerprint),
		logx.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// Decode parses a feed document. The "server" array is required.
func Decode(body []byte) ([]catalog.Listing, error) {
	var doc struct {
		Server *[]catalog.Listing `json:"server"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if doc.Server == nil {
		return nil, fmt.Errorf("decode catalog: missing server list")
	}
	return *doc.Server, nil
}
