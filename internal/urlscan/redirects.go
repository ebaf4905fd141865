package urlscan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type Trace struct {
	Hops   []Hop
	Final  string
	Capped bool
}

// Redirects is the number of redirects followed.
func (t Trace) Redirects() int {
	if len(t.Hops) == 0 {
		return 0
	}
	return len(t.Hops) - 1
}

// TraceRedirects follows Location headers one hop at a time, stopping after
// MaxHops redirects.
func (s *Scanner) TraceRedirects(ctx context.Context, start *url.URL) (Trace, error) {
	ctx, cancel := context.WithTimeout(ctx, traceTimeout)
	defer cancel()

	var tr Trace
	current := start
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return tr, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; technews-linkcheck/1.0)")

		resp, err := s.tracer.Do(req)
		if err != nil {
			return tr, fmt.Errorf("request %s: %w", current, err)
		}
		resp.Body.Close()

		tr.Hops = append(tr.Hops, Hop{URL: current.String(), Status: resp.StatusCode})
		tr.Final = current.String()

		loc := resp.Header.Get("Location")
		if resp.StatusCode < 300 || resp.StatusCode >= 400 || loc == "" {
			return tr, nil
		}
		if tr.Redirects() >= MaxHops {
			tr.Capped = true
			return tr, nil
		}

		next, err := current.Parse(loc)
		if err != nil {
			return tr, fmt.Errorf("bad Location %q: %w", loc, err)
		}
		current = next
	}
}
