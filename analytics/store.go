package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// tsLayout is how visit timestamps are stored: UTC, sortable as text and
// readable by SQLite's date functions.
const tsLayout = "2006-01-02 15:04:05"

// Store is the local analytics provider: a SQLite visit log that answers the
// same queries as the remote reporting API.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create analytics dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure analytics db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			hostname TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '(direct)',
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			screen_size TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			duration_sec INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_path ON visits(visitor_id, path);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is bumped with every migration added to migrate.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	raw, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version := 0
	if raw != "" {
		if version, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("parse schema version %q: %w", raw, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	return s.SetSetting("schema_version", strconv.Itoa(currentSchemaVersion))
}

// GetSetting returns the value stored under key, or "" if there is none.
func (s *Store) GetSetting(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveVisit records a page view.
func (s *Store) SaveVisit(ctx context.Context, v *Visit) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO visits
		(visitor_id, session_id, ip_hash, hostname, path, referrer, browser, os, device, screen_size, timestamp, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.SessionID, v.IPHash, v.Hostname, v.Path, v.Referrer,
		v.Browser, v.OS, v.Device, v.ScreenSize, v.Timestamp.UTC().Format(tsLayout), v.DurationSec)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// UpdateVisitDuration sets the time on page of the visitor's latest view of path.
func (s *Store) UpdateVisitDuration(ctx context.Context, visitorID, path string, durationSec int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE visits SET duration_sec = ?
		WHERE id = (SELECT id FROM visits WHERE visitor_id = ? AND path = ? ORDER BY timestamp DESC, id DESC LIMIT 1)`,
		durationSec, visitorID, path)
	if err != nil {
		return fmt.Errorf("update visit duration: %w", err)
	}
	return nil
}

// CleanupOldVisits deletes visits older than the retention period.
func (s *Store) CleanupOldVisits(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(tsLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup visits: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartCleanupScheduler prunes old visits every interval until the returned
// stop function is called.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration, logger Logger) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := s.CleanupOldVisits(context.Background(), retentionDays)
				if err != nil {
					logger.Errorf("analytics cleanup: %v", err)
					continue
				}
				if n > 0 {
					logger.Infof("analytics cleanup: removed %d visits older than %d days", n, retentionDays)
				}
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}

// Logger is the subset of echo.Logger the package writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// dimensionExprs maps reporting dimensions to SQL over the visits table.
// ga:nthDay selects the date and is rewritten to a day offset after the scan.
var dimensionExprs = map[string]string{
	"ga:date":            "strftime('%Y%m%d', timestamp)",
	"ga:nthDay":          "date(timestamp)",
	"ga:hostname":        "hostname",
	"ga:pagePath":        "path",
	"ga:fullReferrer":    "referrer",
	"ga:browser":         "browser",
	"ga:operatingSystem": "os",
	"ga:deviceCategory":  "device",
}

var metricExprs = map[string]string{
	"ga:sessions":   "COUNT(DISTINCT session_id)",
	"ga:pageviews":  "COUNT(*)",
	"ga:users":      "COUNT(DISTINCT visitor_id)",
	"ga:timeOnPage": "COALESCE(SUM(duration_sec), 0)",
}

// Query answers q from the visit log.
func (s *Store) Query(ctx context.Context, q Query) (*Result, error) {
	if len(q.Metrics) == 0 {
		return nil, badRequest("at least one metric is required")
	}
	now := s.now()
	start, err := ResolveDate(q.StartDate, now)
	if err != nil {
		return nil, badRequest("start-date: %v", err)
	}
	end, err := ResolveDate(q.EndDate, now)
	if err != nil {
		return nil, badRequest("end-date: %v", err)
	}
	if end.Before(start) {
		return nil, badRequest("end-date %s is before start-date %s", q.EndDate, q.StartDate)
	}

	var (
		cols    []string
		groupBy []string
		aliases = make(map[string]string)
	)
	for i, d := range q.Dimensions {
		expr, ok := dimensionExprs[d]
		if !ok {
			return nil, badRequest("unknown dimension %s", d)
		}
		alias := fmt.Sprintf("d%d", i)
		cols = append(cols, expr+" AS "+alias)
		groupBy = append(groupBy, alias)
		aliases[d] = alias
	}
	for i, m := range q.Metrics {
		expr, ok := metricExprs[m]
		if !ok {
			return nil, badRequest("unknown metric %s", m)
		}
		alias := fmt.Sprintf("m%d", i)
		cols = append(cols, expr+" AS "+alias)
		aliases[m] = alias
	}

	where := []string{"timestamp >= ?", "timestamp < ?"}
	args := []any{start.Format(tsLayout), end.AddDate(0, 0, 1).Format(tsLayout)}
	filters, err := parseFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		expr, ok := dimensionExprs[f.name]
		if !ok || f.name == "ga:nthDay" {
			return nil, badRequest("cannot filter on %s", f.name)
		}
		where = append(where, expr+" = ?")
		args = append(args, f.value)
	}

	order := groupBy
	if len(q.Sort) > 0 {
		order = nil
		for _, key := range q.Sort {
			name := strings.TrimPrefix(key, "-")
			alias, ok := aliases[name]
			if !ok {
				return nil, badRequest("sort field %s is not part of the query", name)
			}
			if strings.HasPrefix(key, "-") {
				alias += " DESC"
			}
			order = append(order, alias)
		}
		// ties fall back to dimension order so results are stable
		order = append(order, groupBy...)
	}

	series := isDateSeries(q.Dimensions) && sortsByDate(q.Sort)

	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(cols, ", ") + " FROM visits WHERE " + strings.Join(where, " AND "))
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(groupBy, ", "))
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(order, ", "))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	width := len(q.Dimensions) + len(q.Metrics)
	out := [][]string{}
	for rows.Next() {
		dest := make([]sql.NullString, width)
		ptrs := make([]any, width)
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan visits: %w", err)
		}
		row := make([]string, width)
		for i, v := range dest {
			row[i] = v.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read visits: %w", err)
	}

	for i, d := range q.Dimensions {
		if d != "ga:nthDay" {
			continue
		}
		for _, row := range out {
			row[i] = nthDay(row[i], start)
		}
	}
	if series {
		out = fillDays(out, q.Dimensions, len(q.Metrics), start, end)
	}

	res := &Result{
		ColumnHeaders: append(append([]string(nil), q.Dimensions...), q.Metrics...),
		Rows:          out,
		TotalResults:  len(out),
	}
	if q.MaxResults > 0 && len(res.Rows) > q.MaxResults {
		res.Rows = res.Rows[:q.MaxResults]
	}
	return res, nil
}

type filter struct {
	name, value string
}

// parseFilters reads ';'-joined name==value conditions. Values may escape
// ',' and ';' with a backslash.
func parseFilters(s string) ([]filter, error) {
	if s == "" {
		return nil, nil
	}
	var (
		out  []filter
		cur  strings.Builder
		runs []string
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case c == ';':
			runs = append(runs, cur.String())
			cur.Reset()
		case c == ',':
			return nil, badRequest("OR filters are not supported")
		default:
			cur.WriteByte(c)
		}
	}
	runs = append(runs, cur.String())
	for _, r := range runs {
		name, value, ok := strings.Cut(r, "==")
		if !ok || name == "" {
			return nil, badRequest("unsupported filter %q", r)
		}
		out = append(out, filter{name: name, value: value})
	}
	return out, nil
}

// EscapeFilterValue escapes the filter separators in v.
func EscapeFilterValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `,`, `\,`, `;`, `\;`)
	return r.Replace(v)
}

func isDateSeries(dims []string) bool {
	if len(dims) == 0 {
		return false
	}
	for _, d := range dims {
		if d != "ga:date" && d != "ga:nthDay" {
			return false
		}
	}
	return true
}

func sortsByDate(sort []string) bool {
	for _, s := range sort {
		if s != "ga:date" && s != "ga:nthDay" {
			return false
		}
	}
	return true
}

func nthDay(date string, start time.Time) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%04d", int(t.Sub(start).Hours()/24))
}

// fillDays returns one row per day from start to end, using zero metrics
// for days without visits.
func fillDays(rows [][]string, dims []string, metrics int, start, end time.Time) [][]string {
	byDay := make(map[int][]string, len(rows))
	for _, row := range rows {
		if n, ok := dayOffset(row, dims, start); ok {
			byDay[n] = row
		}
	}
	days := int(end.Sub(start).Hours()/24) + 1
	out := make([][]string, 0, days)
	for n := 0; n < days; n++ {
		if row, ok := byDay[n]; ok {
			out = append(out, row)
			continue
		}
		day := start.AddDate(0, 0, n)
		row := make([]string, 0, len(dims)+metrics)
		for _, d := range dims {
			if d == "ga:date" {
				row = append(row, day.Format("20060102"))
			} else {
				row = append(row, fmt.Sprintf("%04d", n))
			}
		}
		for i := 0; i < metrics; i++ {
			row = append(row, "0")
		}
		out = append(out, row)
	}
	return out
}

func dayOffset(row []string, dims []string, start time.Time) (int, bool) {
	for i, d := range dims {
		switch d {
		case "ga:date":
			t, err := time.Parse("20060102", row[i])
			if err != nil {
				return 0, false
			}
			return int(t.Sub(start).Hours() / 24), true
		case "ga:nthDay":
			n, err := strconv.Atoi(row[i])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
