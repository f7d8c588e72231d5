// Package analytics answers dashboard queries, either from a remote
// reporting API or from the site's own visit log kept in SQLite.
package analytics

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"
)

// salt is the per-installation secret mixed into every visitor hash.
var salt struct {
	once  sync.Once
	value string
}

// InitSalt loads the hashing salt from the store, creating one on first run.
// It must run before the collector serves requests.
func InitSalt(store *Store) error {
	var initErr error
	salt.once.Do(func() {
		v, err := store.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if v == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			v = hex.EncodeToString(b)
			if err := store.SetSetting("hash_salt", v); err != nil {
				initErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		salt.value = v
	})
	return initErr
}

// Visit is one recorded page view.
type Visit struct {
	ID          int64
	VisitorID   string
	SessionID   string
	IPHash      string
	Hostname    string
	Path        string
	Referrer    string // cleaned, see CleanReferrer
	Browser     string
	OS          string
	Device      string
	ScreenSize  string
	Timestamp   time.Time
	DurationSec int
}

func hash16(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(salt.value + strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// HashIP returns a salted, truncated hash of an IP address.
func HashIP(ip string) string {
	return hash16(ip)
}

// VisitorID derives an anonymous visitor identifier from IP and user agent.
func VisitorID(ip, userAgent string) string {
	return hash16(ip, userAgent)
}

// SessionID groups a visitor's views into one session per UTC day.
func SessionID(visitorID string, at time.Time) string {
	return hash16(visitorID, at.UTC().Format("2006-01-02"))
}

// ParseUserAgent classifies a user agent into browser, OS and device
// category. Checks run from the most specific token to the most generic.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)

	switch {
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera"), strings.Contains(ua, "opr/"):
		browser = "Opera"
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	default:
		browser = "(other)"
	}

	// android UAs also mention linux
	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		os = "iOS"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		os = "Macintosh"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	default:
		os = "(other)"
	}

	// iPad UAs contain "mobile" too
	switch {
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		device = "tablet"
	case strings.Contains(ua, "mobile"):
		device = "mobile"
	default:
		device = "desktop"
	}
	return browser, os, device
}

var botMarkers = []string{
	"bot", "crawl", "spider", "slurp", "scrape",
	"yandex", "baidu", "facebookexternalhit", "headlesschrome",
}

// IsBot reports whether the user agent looks like a crawler. Bot traffic is
// not recorded.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

var referrerHost = regexp.MustCompile(`^https?://(?:www\.)?([^/?#]+)([^?#]*)`)

// searchEngines is matched in order; the first marker found in the host wins.
var searchEngines = []struct {
	marker, name string
}{
	{"google.", "google"},
	{"bing.", "bing"},
	{"duckduckgo.", "duckduckgo"},
	{"yahoo.", "yahoo"},
}

// CleanReferrer reduces a referrer URL to the form reported under
// ga:fullReferrer: "(direct)" when empty, the engine name for search
// engines, otherwise host plus path.
func CleanReferrer(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "(direct)"
	}
	lower := strings.ToLower(ref)
	m := referrerHost.FindStringSubmatch(lower)
	if m == nil {
		return "(not set)"
	}
	for _, se := range searchEngines {
		if strings.Contains(m[1], se.marker) {
			return se.name
		}
	}
	host := m[1]
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	path := strings.TrimSuffix(m[2], "/")
	return host + path
}
