package analytics

import (
	"context"
	"fmt"
	"strconv"
)

// PageViews returns the views of path between yesterday and today, the
// figure shown next to a page in the editor.
func PageViews(ctx context.Context, q Querier, viewID, path string) (int64, error) {
	res, err := q.Query(ctx, Query{
		ViewID:    viewID,
		StartDate: "yesterday",
		EndDate:   "today",
		Metrics:   []string{"ga:pageviews"},
		Filters:   "ga:pagePath==" + EscapeFilterValue(path),
	})
	if err != nil {
		return 0, fmt.Errorf("page views for %s: %w", path, err)
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(res.Rows[0][0], 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
