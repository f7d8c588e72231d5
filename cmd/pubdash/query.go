package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/pubdash"
	"github.com/eringen/pubdash/analytics"
	"github.com/eringen/pubdash/dashboard"
	"github.com/eringen/pubdash/report"
)

var queryCmd = &cobra.Command{
	Use:   "query [sessions|pages|referrers]",
	Short: "Print a dashboard report",
	Long: `Run the dashboard's queries for one site and print a region as a paged
table, or every region as an export document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().Int("site", 0, "site id (default: first site)")
	queryCmd.Flags().String("start", "", "start date (YYYY-MM-DD, today, yesterday, NdaysAgo)")
	queryCmd.Flags().String("end", "", "end date")
	queryCmd.Flags().Int("page", 1, "table page to print")
	queryCmd.Flags().String("format", "table", "table, json or csv")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	siteID, _ := cmd.Flags().GetInt("site")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	page, _ := cmd.Flags().GetInt("page")
	format, _ := cmd.Flags().GetString("format")

	app := pubdash.New(cfg)
	sites, err := app.Config.Sites.Normalize()
	if err != nil {
		return err
	}
	site, err := sites.Default()
	if siteID != 0 {
		site, err = sites.Find(siteID)
	}
	if err != nil {
		return err
	}
	if problems := site.Problems(app.Config.Provider == pubdash.ProviderRemote); len(problems) > 0 {
		return fmt.Errorf("site %d: %s", site.ID, strings.Join(problems, " "))
	}

	q, closeFn, err := openQuerier(app.Config, site)
	if err != nil {
		return err
	}
	defer closeFn()

	ctrl := dashboard.New(site, q, dashboard.WithLogger(logger), dashboard.WithPageSize(app.Config.PageSize),
		dashboard.WithMaxResults(app.Config.MaxResults))
	ctx := context.Background()
	if _, err := ctrl.Dispatch(ctx, dashboard.Command{
		Kind:  dashboard.RangeChanged,
		Range: dashboard.DateRange{Start: start, End: end},
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		b, err := ctrl.Export()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case "csv":
		return ctrl.Snapshot().WriteCSV(out)
	case "table":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	region := dashboard.Pages
	if len(args) > 0 {
		if region, err = dashboard.ParseRegion(args[0]); err != nil {
			return err
		}
	}
	if region == dashboard.Sessions {
		snap := ctrl.Snapshot()
		pt := report.Paginate(report.NewTable(dashboard.Headers[dashboard.Sessions], snap.Sessions), len(snap.Sessions))
		return printTable(out, pt)
	}
	pt, err := ctrl.Page(region, page-1)
	if err != nil {
		return err
	}
	return printTable(out, pt)
}

// openQuerier opens the provider for site without starting the server.
func openQuerier(cfg pubdash.Config, site dashboard.Site) (analytics.Querier, func() error, error) {
	if cfg.Provider == pubdash.ProviderRemote {
		token, err := site.AccessToken()
		if err != nil {
			return nil, nil, err
		}
		return analytics.NewClient(cfg.APIBaseURL, token), func() error { return nil }, nil
	}
	store, err := analytics.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func printTable(w io.Writer, pt *report.PagedTable) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(pt.Table.Headers, "\t"))
	for _, row := range pt.VisibleRows() {
		fmt.Fprintln(tw, strings.Join(row.Cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nPage %d of %d\n", pt.State.Number(), pt.State.Count)
	return err
}
