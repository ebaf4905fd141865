package urlscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var ErrNoRegistration = errors.New("no registration event")

type rdapDomain struct {
	Events []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
}

// RegistrationDate returns when domain was registered according to RDAP.
func (s *Scanner) RegistrationDate(ctx context.Context, domain string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, rdapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.rdapURL+"/domain/"+url.PathEscape(domain), nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("RDAP returned status %d", resp.StatusCode)
	}

	var d rdapDomain
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return time.Time{}, fmt.Errorf("decode RDAP response: %w", err)
	}
	for _, ev := range d.Events {
		if ev.Action != "registration" {
			continue
		}
		t, err := time.Parse(time.RFC3339, ev.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad registration date %q: %w", ev.Date, err)
		}
		return t, nil
	}
	return time.Time{}, ErrNoRegistration
}
