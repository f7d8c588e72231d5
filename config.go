package pubdash

import (
	"time"

	"github.com/eringen/pubdash/analytics"
	"github.com/eringen/pubdash/dashboard"
)

// Providers the dashboard can read reports from.
const (
	ProviderLocal  = "local"  // the visit log collected by this server
	ProviderRemote = "remote" // a Core Reporting API endpoint
)

// Config holds all configuration for a pubdash server.
type Config struct {
	Name string // Product name in page titles (default "pubdash")
	Addr string // Listen address (default ":3000")

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	Provider      string // "local" (default) or "remote"
	DatabasePath  string // Local visit log (default "data/analytics.db")
	RetentionDays int    // Local visits older than this are pruned (default 365)
	APIBaseURL    string // Remote reporting API root

	CacheTTL time.Duration // Query result cache TTL (default 5min)
	RedisURL string        // Share the result cache through Redis when set

	PageSize    int    // Table rows per page (default 5)
	MaxResults  int    // Rows requested for the tables (default 25)
	ChartScript string // Chart library URL (default "/public/chart.min.js")

	Sites dashboard.Sites
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "pubdash"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/analytics.db"
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 365
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://www.googleapis.com/analytics/v3"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.PageSize == 0 {
		c.PageSize = 5
	}
	if c.MaxResults == 0 {
		c.MaxResults = 25
	}
	if c.ChartScript == "" {
		c.ChartScript = "/public/chart.min.js"
	}
	if len(c.Sites) == 0 && c.Provider == ProviderLocal {
		c.Sites = dashboard.Sites{{ID: 1, Name: c.Name, ViewID: "local"}}
	}
}

func (c Config) remote() bool {
	return c.Provider == ProviderRemote
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for host static assets (default "public").
// The chart library is expected there unless ChartScript points elsewhere.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithQuerier answers every site's reports from q instead of the
// configured provider.
func WithQuerier(q analytics.Querier) Option {
	return func(a *App) {
		a.querier = q
	}
}
