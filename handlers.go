package pubdash

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubdash/analytics"
	"github.com/eringen/pubdash/dashboard"
	"github.com/eringen/pubdash/report"
	"github.com/eringen/pubdash/views"
)

var regionTitles = map[dashboard.Region]string{
	dashboard.Sessions:  "Sessions",
	dashboard.Pages:     "Popular pages",
	dashboard.Referrers: "Top referrers",
}

// siteController resolves the :site parameter. Unknown ids are a 404.
func (a *App) siteController(c echo.Context) (*dashboard.Controller, error) {
	id, err := strconv.Atoi(c.Param("site"))
	if err != nil {
		return nil, echo.ErrNotFound
	}
	ctrl, err := a.Controller(id)
	if err != nil {
		return nil, echo.ErrNotFound
	}
	return ctrl, nil
}

func (a *App) handleDefaultDashboard(c echo.Context) error {
	s, err := a.Config.Sites.Default()
	if err != nil {
		return echo.ErrNotFound
	}
	return c.Redirect(http.StatusSeeOther, DashboardURL(s))
}

func (a *App) handleDashboard(c echo.Context) error {
	ctrl, err := a.siteController(c)
	if err != nil {
		return err
	}
	site := ctrl.Site()
	page := views.DashboardPage{
		Admin:       a.admin(c),
		SiteName:    site.Name,
		Problems:    site.Problems(a.Config.remote()),
		ExportURL:   exportURL(site),
		ExportReady: ctrl.ExportReady(),
		Switcher:    a.switcher(site.ID),
	}

	start, end := c.QueryParam("start"), c.QueryParam("end")
	if start != "" || end != "" {
		if err := ctrl.SetRange(dashboard.DateRange{Start: start, End: end}); err != nil {
			page.RangeError = "Dates must be YYYY-MM-DD, today, yesterday or NdaysAgo."
		}
	}
	rng := ctrl.Range()
	page.Start, page.End = rng.Start, rng.End

	for _, r := range dashboard.Regions {
		q := rangeQuery(rng)
		q.Set("refresh", "1")
		page.Regions = append(page.Regions, views.Region{
			ID:    string(r),
			Title: regionTitles[r],
			URL:   fragmentURL(site, r) + "?" + q.Encode(),
		})
	}
	return Render(c, views.Dashboard(page))
}

func (a *App) switcher(current int) *views.Switcher {
	sw := dashboard.NewSiteSwitcher(a.Config.Sites, current, DashboardURL)
	if sw == nil {
		return nil
	}
	out := &views.Switcher{Action: analyticsBase + "/switch/", Initial: sw.Initial}
	for _, o := range sw.Options {
		out.Options = append(out.Options, views.SwitchOption{Label: o.Label, URL: o.URL, Selected: o.Selected})
	}
	return out
}

// handleSwitch navigates to the selected site's dashboard. Selecting the
// site already shown, or anything that is not a site, stays put.
func (a *App) handleSwitch(c echo.Context) error {
	initial := c.FormValue("initial")
	sw := dashboard.NewSiteSwitcher(a.Config.Sites, 0, DashboardURL)
	if sw == nil {
		return c.Redirect(http.StatusSeeOther, analyticsBase+"/")
	}
	sw.Initial = initial
	if target, ok := sw.Target(c.FormValue("site")); ok {
		return c.Redirect(http.StatusSeeOther, target)
	}
	for _, o := range sw.Options {
		if o.URL == initial {
			return c.Redirect(http.StatusSeeOther, initial)
		}
	}
	return c.Redirect(http.StatusSeeOther, analyticsBase+"/")
}

// handleFragment renders one region. refresh=1 reruns the region's query;
// cmd and page move a table through its loaded rows. start and end name the
// range the page was rendered for; a region holding another range is
// reloaded for it.
func (a *App) handleFragment(c echo.Context) error {
	ctrl, err := a.siteController(c)
	if err != nil {
		return err
	}
	region, err := dashboard.ParseRegion(c.Param("region"))
	if err != nil {
		return echo.ErrNotFound
	}
	ctx := c.Request().Context()
	rng, err := fragmentRange(c, ctrl)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cmd, paging := report.ParseCommand(c.QueryParam("cmd"))
	st, _ := ctrl.State(region)
	reload := c.QueryParam("refresh") != "" || st.Range != rng
	switch st.Status {
	case dashboard.Idle, dashboard.Failed:
		reload = true
	case dashboard.Loading:
		// paging waits for the running query instead of starting another
		reload = reload || !paging
	}
	if reload {
		st, err = ctrl.LoadRange(ctx, region, rng)
		if err != nil {
			return Render(c, views.Failed(failureText(err)))
		}
	}

	if region == dashboard.Sessions {
		if st.Chart == nil {
			return Render(c, views.Loading())
		}
		return Render(c, views.Chart(string(region), st.Chart))
	}
	if st.Table == nil {
		return Render(c, views.Loading())
	}

	var pt *report.PagedTable
	if paging {
		page, _ := strconv.Atoi(c.QueryParam("page"))
		kind := dashboard.NextPage
		if cmd == report.Previous {
			kind = dashboard.PreviousPage
		}
		pt, err = ctrl.Dispatch(ctx, dashboard.Command{Kind: kind, Region: region, Page: page})
	} else {
		pt, err = ctrl.Page(region, 0)
	}
	if err != nil {
		return err
	}
	base := fragmentURL(ctrl.Site(), region) + "?" + rangeQuery(rng).Encode()
	return Render(c, views.Table(string(region), pt, views.PageLinksFor(base, pt.State)))
}

// fragmentRange reads the range a fragment was requested for, falling back
// to the controller's current one.
func fragmentRange(c echo.Context, ctrl *dashboard.Controller) (dashboard.DateRange, error) {
	start, end := c.QueryParam("start"), c.QueryParam("end")
	if start == "" && end == "" {
		return ctrl.Range(), nil
	}
	return dashboard.DateRange{Start: start, End: end}.Normalize()
}

func failureText(err error) string {
	var se *analytics.ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return "Could not load this report: " + se.Message
	}
	return "Could not load this report."
}

// handleChart returns the sessions chart configuration as JSON.
func (a *App) handleChart(c echo.Context) error {
	ctrl, err := a.siteController(c)
	if err != nil {
		return err
	}
	st, _ := ctrl.State(dashboard.Sessions)
	if st.Status != dashboard.Ready {
		if st, err = ctrl.Load(c.Request().Context(), dashboard.Sessions); err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, failureText(err))
		}
	}
	if st.Chart == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chart is still loading")
	}
	return c.JSON(http.StatusOK, st.Chart)
}

type pageViewsResponse struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

// handlePageViews answers the editor's "views since yesterday" lookup.
func (a *App) handlePageViews(c echo.Context) error {
	ctrl, err := a.siteController(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}
	site := ctrl.Site()
	n, err := analytics.PageViews(c.Request().Context(), a.queriers[site.ID], site.ViewID, path)
	if err != nil {
		c.Logger().Errorf("page views for site %d: %v", site.ID, err)
		return echo.NewHTTPError(http.StatusBadGateway, failureText(err))
	}
	return c.JSON(http.StatusOK, pageViewsResponse{Path: path, Views: n})
}

// handleExport downloads the latest rows of every region. With nothing
// loaded yet the regions are loaded first.
func (a *App) handleExport(c echo.Context) error {
	ctrl, err := a.siteController(c)
	if err != nil {
		return err
	}
	format := c.FormValue("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be json or csv")
	}

	if ctrl.Snapshot().Empty() {
		if err := ctrl.Refresh(c.Request().Context()); err != nil && ctrl.Snapshot().Empty() {
			return echo.NewHTTPError(http.StatusBadGateway, failureText(err))
		}
	}

	site := ctrl.Site()
	name := fmt.Sprintf("analytics-%d-%s.%s", site.ID, time.Now().Format("2006-01-02"), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))

	if format == "csv" {
		c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		c.Response().WriteHeader(http.StatusOK)
		return ctrl.Snapshot().WriteCSV(c.Response())
	}
	b, err := ctrl.Export()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, b)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 && code != http.StatusBadGateway && code != http.StatusServiceUnavailable {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
