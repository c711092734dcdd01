// Package ddos flags abusive request patterns per identity, independent
// of normal quota accounting.
package ddos

import (
	"container/list"
	"encoding/json"
	"strings"
	"sync"
	"time"

	internalsettings "github.com/edgegate/edgegate/internal/settings"
)

// Thresholds control when an identity is flagged.
type Thresholds struct {
	// BurstLimit is the request count within BurstWindow that no
	// legitimate single caller reaches.
	BurstLimit  int
	BurstWindow time.Duration
}

// LoadThresholds reads detector thresholds from the settings snapshot.
func LoadThresholds() Thresholds {
	th := Thresholds{
		BurstLimit:  internalsettings.DefaultDDoSBurstLimit,
		BurstWindow: time.Duration(internalsettings.DefaultDDoSBurstWindowSeconds) * time.Second,
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.DDoSBurstLimitKey); ok {
		var parsed int
		if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal == nil && parsed > 0 {
			th.BurstLimit = parsed
		}
	}
	if raw, ok := internalsettings.DBConfigValue(internalsettings.DDoSBurstWindowSecondsKey); ok {
		var parsed int
		if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal == nil && parsed > 0 {
			th.BurstWindow = time.Duration(parsed) * time.Second
		}
	}
	return th
}

// scanSignatures are path fragments characteristic of automated scans,
// never of the API's own clients.
var scanSignatures = []string{
	"/.env",
	"/.git",
	"/wp-admin",
	"/wp-login",
	"/phpmyadmin",
	".php",
	"/etc/passwd",
	"/cgi-bin/",
}

type velocityEntry struct {
	identity    string
	windowStart time.Time
	count       int
	element     *list.Element
}

// Detector tracks short-interval request velocity per identity. All state
// is bounded: at most maxKeys identities are tracked, least recently seen
// evicted first, so inspection stays cheap on every request.
type Detector struct {
	thresholds func() Thresholds
	maxKeys    int

	mu      sync.Mutex
	entries map[string]*velocityEntry
	order   *list.List
}

const defaultMaxTrackedKeys = 50000

// NewDetector constructs a Detector. A nil thresholds provider reads the
// settings snapshot on every inspection.
func NewDetector(thresholds func() Thresholds, maxKeys int) *Detector {
	if thresholds == nil {
		thresholds = LoadThresholds
	}
	if maxKeys <= 0 {
		maxKeys = defaultMaxTrackedKeys
	}
	return &Detector{
		thresholds: thresholds,
		maxKeys:    maxKeys,
		entries:    make(map[string]*velocityEntry),
		order:      list.New(),
	}
}

// Inspect reports whether the identity's current request looks abusive.
// A true result means the caller should be blocked; the detector itself
// never denies or stores blocks.
func (d *Detector) Inspect(identity, path string, now time.Time) bool {
	if d == nil || identity == "" {
		return false
	}
	if isScanPath(path) {
		return true
	}

	th := d.thresholds()
	if th.BurstLimit <= 0 || th.BurstWindow <= 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.entries[identity]
	if entry == nil {
		entry = &velocityEntry{identity: identity, windowStart: now}
		entry.element = d.order.PushFront(entry)
		d.entries[identity] = entry
		for len(d.entries) > d.maxKeys {
			back := d.order.Back()
			if back == nil {
				break
			}
			dropped := back.Value.(*velocityEntry)
			d.order.Remove(back)
			delete(d.entries, dropped.identity)
		}
	} else {
		d.order.MoveToFront(entry.element)
	}

	if now.Sub(entry.windowStart) >= th.BurstWindow {
		entry.windowStart = now
		entry.count = 0
	}
	entry.count++
	return entry.count > th.BurstLimit
}

// isScanPath reports whether the path matches a known scan signature.
func isScanPath(path string) bool {
	lower := strings.ToLower(path)
	for _, signature := range scanSignatures {
		if strings.Contains(lower, signature) {
			return true
		}
	}
	return false
}
