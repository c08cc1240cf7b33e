package harvest

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Ledger tracks article links already processed in this run so that a
// fragment observed across multiple scroll passes is emitted at most
// once. It grows for the run's duration; there is no eviction.
type Ledger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewLedger creates a Ledger with the given estimated capacity.
func NewLedger(estimatedCapacity int) *Ledger {
	return &Ledger{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// Seen returns true if the link (after canonicalization) was marked.
func (l *Ledger) Seen(rawURL string) bool {
	key := CanonicalizeURL(rawURL)
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[key]
	return ok
}

// Mark records a link as processed.
func (l *Ledger) Mark(rawURL string) {
	key := CanonicalizeURL(rawURL)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key] = struct{}{}
}

// Count returns the number of unique links marked.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// CanonicalizeURL normalizes a URL for dedup membership:
// - lowercases scheme and host
// - removes fragment
// - sorts query parameters
// - removes trailing slash (except root)
// - removes default ports (80 for http, 443 for https)
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
