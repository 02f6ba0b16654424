// Package geoip tags detected addresses with their country using a
// MaxMind database. It is optional; a nil *Locator answers every lookup
// with an empty string.
package geoip

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Locator performs country lookups against an open mmdb file.
type Locator struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
	path   string
}

// Open loads the database at path. An empty path disables lookups and
// returns a nil Locator without error.
func Open(path string) (*Locator, error) {
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("GeoIP database not found at %s: %w", path, err)
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	return &Locator{reader: reader, path: path}, nil
}

// Country returns the ISO 3166-1 alpha-2 code for addr, or "" when unknown.
func (l *Locator) Country(addr netip.Addr) string {
	if l == nil || !addr.IsValid() {
		return ""
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.reader == nil {
		return ""
	}
	record, err := l.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Path returns the database path.
func (l *Locator) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close releases the database.
func (l *Locator) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}
