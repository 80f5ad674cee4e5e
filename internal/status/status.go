// Package status holds the short status line shown on the device display
// and in the browser.
package status

import (
	"sync"
	"unicode/utf8"

	"wifiscout/internal/service"
)

// Status line texts
const (
	Searching       = "  Searching..."
	AdapterMissing  = "  wifi: False"
	AdapterRestored = "  wifi: True"
)

// ssidWidth is how much of an SSID fits on the display
const ssidWidth = 14

// Scanning renders the in-progress line for ssid
func Scanning(ssid string) string { return "[~]:" + truncate(ssid) }

// Succeeded renders the success line for ssid
func Succeeded(ssid string) string { return "[O]:" + truncate(ssid) }

// Failed renders the failure line for ssid
func Failed(ssid string) string { return "[X]:" + truncate(ssid) }

func truncate(ssid string) string {
	if utf8.RuneCountInString(ssid) <= ssidWidth {
		return ssid
	}
	return string([]rune(ssid)[:ssidWidth])
}

// Reporter is a guarded status string that announces every change
type Reporter struct {
	mu        sync.RWMutex
	text      string
	publisher service.Publisher
}

// NewReporter creates a reporter; publisher may be nil
func NewReporter(publisher service.Publisher) *Reporter {
	return &Reporter{publisher: publisher}
}

// Set replaces the status text and publishes it when it changed
func (r *Reporter) Set(text string) {
	r.mu.Lock()
	changed := r.text != text
	r.text = text
	r.mu.Unlock()

	if changed && r.publisher != nil {
		r.publisher.Publish(service.Event{
			Type:    service.EventStatusChanged,
			Payload: map[string]string{"status": text},
		})
	}
}

// Get returns the current status text
func (r *Reporter) Get() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.text
}
