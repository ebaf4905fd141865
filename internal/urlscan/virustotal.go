package urlscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/technews/internal/retry"
)

var errAnalysisPending = errors.New("analysis not completed")

type vtSubmitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type vtAnalysisResponse struct {
	Data struct {
		Attributes struct {
			Status string `json:"status"`
			Stats  struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
			} `json:"stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// Reputation asks VirusTotal about raw. Without an API key, or when the
// lookup fails or times out, a simulated clean result is returned.
func (s *Scanner) Reputation(ctx context.Context, raw string) Reputation {
	if s.vtKey == "" {
		return Reputation{Simulated: true}
	}

	ctx, cancel := context.WithTimeout(ctx, reputationTimeout)
	defer cancel()

	rep, err := s.virusTotal(ctx, raw)
	if err != nil {
		s.log.Warn("VirusTotal lookup failed, using simulated result", "url", raw, "error", err)
		return Reputation{Simulated: true}
	}
	return rep
}

func (s *Scanner) virusTotal(ctx context.Context, raw string) (Reputation, error) {
	form := url.Values{"url": {raw}}
	var submitted vtSubmitResponse
	if err := s.vtDo(ctx, http.MethodPost, s.vtURL+"/urls", strings.NewReader(form.Encode()), &submitted); err != nil {
		return Reputation{}, fmt.Errorf("submit url: %w", err)
	}
	if submitted.Data.ID == "" {
		return Reputation{}, errors.New("submit url: empty analysis id")
	}

	var analysis vtAnalysisResponse
	poll := retry.Config{MaxAttempts: 4, Delay: time.Second}
	err := retry.WithRetry(ctx, poll, func(ctx context.Context) error {
		if err := s.vtDo(ctx, http.MethodGet, s.vtURL+"/analyses/"+url.PathEscape(submitted.Data.ID), nil, &analysis); err != nil {
			return retry.Permanent(err)
		}
		if analysis.Data.Attributes.Status != "completed" {
			return errAnalysisPending
		}
		return nil
	})
	if err != nil {
		return Reputation{}, fmt.Errorf("get analysis: %w", err)
	}

	stats := analysis.Data.Attributes.Stats
	return Reputation{
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Harmless:   stats.Harmless,
		Undetected: stats.Undetected,
	}, nil
}

func (s *Scanner) vtDo(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("x-apikey", s.vtKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("VirusTotal returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
