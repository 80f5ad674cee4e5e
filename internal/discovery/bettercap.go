// Package discovery adapts external access point feeds to the orchestrator.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wifiscout/internal/domain"
)

// Source supplies the current list of visible access points
type Source interface {
	AccessPoints(ctx context.Context) ([]domain.AccessPoint, error)
}

// sessionWiFi is the subset of the bettercap session we read
type sessionWiFi struct {
	APs []map[string]any `json:"aps"`
}

// BettercapSource reads access points from a bettercap REST session
type BettercapSource struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewBettercapSource creates a source for the bettercap API at baseURL
func NewBettercapSource(baseURL, username, password string, timeout time.Duration) *BettercapSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BettercapSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

// AccessPoints fetches /api/session/wifi and converts every record
func (b *BettercapSource) AccessPoints(ctx context.Context) ([]domain.AccessPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/session/wifi", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if b.username != "" || b.password != "" {
		req.SetBasicAuth(b.username, b.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var session sessionWiFi
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	aps := make([]domain.AccessPoint, 0, len(session.APs))
	for _, record := range session.APs {
		if record == nil {
			continue
		}
		aps = append(aps, domain.NewAccessPoint(record))
	}
	return aps, nil
}
