package pubdash

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/eringen/pubdash/dashboard"
)

const analyticsBase = "/admin/analytics"

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// DashboardURL is the dashboard page of s.
func DashboardURL(s dashboard.Site) string {
	return BuildURL(analyticsBase, strconv.Itoa(s.ID))
}

func fragmentURL(s dashboard.Site, r dashboard.Region) string {
	return BuildURL(analyticsBase, strconv.Itoa(s.ID), "fragments", string(r))
}

// rangeQuery carries a date range in fragment URLs, so every tab keeps
// paging the range it was opened with.
func rangeQuery(r dashboard.DateRange) url.Values {
	return url.Values{"start": {r.Start}, "end": {r.End}}
}

func exportURL(s dashboard.Site) string {
	return BuildURL(analyticsBase, strconv.Itoa(s.ID), "export")
}
