// Package pubdash is an analytics dashboard for a CMS admin, built with Go,
// Echo, and templ. It renders each site's sessions chart, popular pages and
// top referrers from either its own visit log or a remote reporting API.
package pubdash

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubdash/analytics"
	"github.com/eringen/pubdash/dashboard"
)

// App is the central pubdash application. It wires together the query
// providers, per-site dashboard controllers, handlers and middleware.
type App struct {
	Config Config
	Echo   *echo.Echo
	Store  *analytics.Store // nil unless Provider is local

	controllers  map[int]*dashboard.Controller
	queriers     map[int]analytics.Querier
	cache        analytics.ResultCache
	collector    *analytics.Collector
	loginLimiter *LoginLimiter
	stopCleanup  func()
	querier      analytics.Querier
	customRoutes []func(*App)
	staticDir    string
}

// New creates a new pubdash App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:      cfg,
		Echo:        echo.New(),
		controllers: make(map[int]*dashboard.Controller),
		queriers:    make(map[int]analytics.Querier),
		staticDir:   "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the providers, builds a controller per site and installs
// middleware and routes. Start calls it; tests call it directly.
func (a *App) Setup() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("pubdash: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pubdash: SessionSecret is required")
	}
	sites, err := a.Config.Sites.Normalize()
	if err != nil {
		return fmt.Errorf("pubdash: %w", err)
	}
	a.Config.Sites = sites

	if a.Config.Provider != ProviderLocal && a.Config.Provider != ProviderRemote {
		return fmt.Errorf("pubdash: unknown provider %q", a.Config.Provider)
	}
	if a.Config.Provider == ProviderLocal {
		store, err := analytics.NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("pubdash: init analytics store: %w", err)
		}
		a.Store = store
		if err := analytics.InitSalt(store); err != nil {
			return fmt.Errorf("pubdash: init analytics salt: %w", err)
		}
		a.collector = analytics.NewCollector(store)
		a.stopCleanup = store.StartCleanupScheduler(a.Config.RetentionDays, 24*time.Hour, a.Echo.Logger)
	}

	if a.Config.RedisURL != "" {
		rc, err := analytics.NewRedisCacheFromURL(a.Config.RedisURL, "pubdash:")
		if err != nil {
			return fmt.Errorf("pubdash: init result cache: %w", err)
		}
		a.cache = rc
	} else {
		a.cache = analytics.NewMemoryCache()
	}

	for _, s := range a.Config.Sites {
		q, err := a.newQuerier(s)
		if err != nil {
			return fmt.Errorf("pubdash: site %d: %w", s.ID, err)
		}
		a.queriers[s.ID] = q
		a.controllers[s.ID] = dashboard.New(s, q,
			dashboard.WithLogger(a.Echo.Logger),
			dashboard.WithPageSize(a.Config.PageSize),
			dashboard.WithMaxResults(a.Config.MaxResults),
		)
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// newQuerier picks the provider behind site s and puts the result cache in
// front of it.
func (a *App) newQuerier(s dashboard.Site) (analytics.Querier, error) {
	var q analytics.Querier
	switch {
	case a.querier != nil:
		q = a.querier
	case a.Config.remote():
		token, err := s.AccessToken()
		if err != nil {
			return nil, err
		}
		q = analytics.NewClient(a.Config.APIBaseURL, token)
	default:
		q = a.Store
	}
	return analytics.Cached(q, a.cache, a.Config.CacheTTL), nil
}

// Start sets the app up and serves until the server is closed.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets: dashboard.js drives the regions, analytics.js is the
	// tracking snippet for the local provider.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/dashboard.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/analytics.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.staticDir)

	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	g := e.Group(analyticsBase, requireAdmin)
	g.GET("/", a.handleDefaultDashboard)
	g.POST("/switch/", a.handleSwitch)
	g.GET("/:site/", a.handleDashboard)
	g.GET("/:site/fragments/:region/", a.handleFragment)
	g.GET("/:site/api/chart", a.handleChart)
	g.GET("/:site/api/page-views", a.handlePageViews)
	g.POST("/:site/export/", a.handleExport)

	if a.collector != nil {
		a.collector.RegisterRoutes(e.Group(""))
	}
}

// Controller returns the dashboard controller of site id.
func (a *App) Controller(id int) (*dashboard.Controller, error) {
	c, ok := a.controllers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", dashboard.ErrUnknownSite, id)
	}
	return c, nil
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.collector != nil {
		a.collector.Close()
	}
	if c, ok := a.cache.(io.Closer); ok {
		c.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
