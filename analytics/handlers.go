package analytics

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Collector records page views sent by the tracking snippet into the local
// store.
type Collector struct {
	store   *Store
	limiter *rateLimiter
	done    chan struct{}
	now     func() time.Time
}

// NewCollector returns a collector limited to 60 requests per IP per minute.
func NewCollector(store *Store) *Collector {
	c := &Collector{
		store:   store,
		limiter: newRateLimiter(60, time.Minute),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go c.limiter.run(c.done)
	return c
}

// Close stops the limiter's background sweep.
func (c *Collector) Close() {
	close(c.done)
}

// CollectRequest is the body posted by the tracking snippet.
type CollectRequest struct {
	Hostname    string `json:"hostname"`
	Path        string `json:"path"`
	Referrer    string `json:"referrer"`
	ScreenSize  string `json:"screen_size"`
	UserAgent   string `json:"user_agent"`
	DurationSec int    `json:"duration_sec"`
}

const (
	maxHostnameLen   = 253
	maxPathLen       = 2048
	maxReferrerLen   = 2048
	maxScreenSizeLen = 32
	maxUserAgentLen  = 512
	maxDurationSec   = 86400
)

func (r *CollectRequest) validate() error {
	switch {
	case r.Path == "":
		return fmt.Errorf("path is required")
	case len(r.Hostname) > maxHostnameLen:
		return fmt.Errorf("hostname exceeds %d bytes", maxHostnameLen)
	case len(r.Path) > maxPathLen:
		return fmt.Errorf("path exceeds %d bytes", maxPathLen)
	case len(r.Referrer) > maxReferrerLen:
		return fmt.Errorf("referrer exceeds %d bytes", maxReferrerLen)
	case len(r.ScreenSize) > maxScreenSizeLen:
		return fmt.Errorf("screen_size exceeds %d bytes", maxScreenSizeLen)
	case len(r.UserAgent) > maxUserAgentLen:
		return fmt.Errorf("user_agent exceeds %d bytes", maxUserAgentLen)
	case r.DurationSec < 0 || r.DurationSec > maxDurationSec:
		return fmt.Errorf("duration_sec must be within 0..%d", maxDurationSec)
	}
	return nil
}

// Collect handles POST /api/analytics/collect.
func (c *Collector) Collect(ctx echo.Context) error {
	ip := ctx.RealIP()
	if !c.limiter.allow(ip) {
		return ctx.NoContent(http.StatusTooManyRequests)
	}
	if ctx.Request().Header.Get("DNT") == "1" {
		return ctx.NoContent(http.StatusNoContent)
	}

	var req CollectRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid request")
	}
	if err := req.validate(); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid request")
	}

	ua := req.UserAgent
	if ua == "" {
		ua = ctx.Request().UserAgent()
	}
	if IsBot(ua) {
		return ctx.NoContent(http.StatusNoContent)
	}

	visitorID := VisitorID(ip, ua)

	// A duration means the page is being left: update the open view.
	if req.DurationSec > 0 {
		if err := c.store.UpdateVisitDuration(ctx.Request().Context(), visitorID, req.Path, req.DurationSec); err != nil {
			ctx.Logger().Errorf("update visit duration: %v", err)
		}
		return ctx.NoContent(http.StatusNoContent)
	}

	host := req.Hostname
	if host == "" {
		host = ctx.Request().Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	now := c.now().UTC()
	browser, os, device := ParseUserAgent(ua)
	visit := &Visit{
		VisitorID:  visitorID,
		SessionID:  SessionID(visitorID, now),
		IPHash:     HashIP(ip),
		Hostname:   host,
		Path:       req.Path,
		Referrer:   CleanReferrer(req.Referrer),
		Browser:    browser,
		OS:         os,
		Device:     device,
		ScreenSize: req.ScreenSize,
		Timestamp:  now,
	}
	if err := c.store.SaveVisit(ctx.Request().Context(), visit); err != nil {
		ctx.Logger().Errorf("save visit: %v", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RegisterRoutes mounts the collector on g.
func (c *Collector) RegisterRoutes(g *echo.Group) {
	g.POST("/api/analytics/collect", c.Collect)
}
