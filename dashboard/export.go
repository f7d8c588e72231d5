package dashboard

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/eringen/pubdash/report"
)

// Snapshot holds the latest rows of each region, keyed as in the export
// document. A region that has not loaded is nil.
type Snapshot struct {
	Sessions  [][]string             `json:"sessions"`
	Pages     []report.AggregatedRow `json:"pages"`
	Referrers [][]string             `json:"referrers"`
}

// Empty reports whether no region has loaded yet.
func (s Snapshot) Empty() bool {
	return s.Sessions == nil && s.Pages == nil && s.Referrers == nil
}

// Export serializes the controller's snapshot as a JSON document.
func (c *Controller) Export() ([]byte, error) {
	b, err := json.Marshal(c.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return b, nil
}

// WriteCSV writes the snapshot as CSV, one titled section per region.
func (s Snapshot) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	sections := []struct {
		region Region
		rows   [][]string
	}{
		{Sessions, s.Sessions},
		{Pages, report.AggregatedCells(s.Pages)},
		{Referrers, s.Referrers},
	}
	for i, sec := range sections {
		if i > 0 {
			if err := cw.Write([]string{}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{string(sec.region)}); err != nil {
			return err
		}
		if err := cw.Write(Headers[sec.region]); err != nil {
			return err
		}
		if err := cw.WriteAll(sec.rows); err != nil {
			return fmt.Errorf("write %s: %w", sec.region, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
