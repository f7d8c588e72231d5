package dashboard

import (
	"context"
	"fmt"

	"github.com/eringen/pubdash/report"
)

// CommandKind is an operator action on the dashboard.
type CommandKind int

const (
	PreviousPage CommandKind = iota + 1
	NextPage
	RangeChanged
)

// Command is one operator action. Page commands carry the table region and
// the page the operator was looking at; RangeChanged carries the new range.
type Command struct {
	Kind   CommandKind
	Region Region
	Page   int
	Range  DateRange
}

// View is the navigation state of a dashboard page.
type View struct {
	Range DateRange
	Pages map[Region]report.PageState
}

// Reduce applies cmd to v. It reports whether the regions must reload.
func Reduce(v View, cmd Command) (View, bool) {
	next := View{Range: v.Range, Pages: make(map[Region]report.PageState, len(v.Pages))}
	for r, p := range v.Pages {
		next.Pages[r] = p
	}
	switch cmd.Kind {
	case PreviousPage, NextPage:
		p, ok := next.Pages[cmd.Region]
		if !ok {
			return next, false
		}
		p = report.Restore(p.Rows, p.Size, cmd.Page)
		if cmd.Kind == PreviousPage {
			p = report.Update(p, report.Previous)
		} else {
			p = report.Update(p, report.Next)
		}
		next.Pages[cmd.Region] = p
		return next, false
	case RangeChanged:
		next.Range = cmd.Range.withDefaults()
		for r, p := range next.Pages {
			next.Pages[r] = report.NewPageState(p.Rows, p.Size)
		}
		return next, true
	}
	return next, false
}

// view captures the controller's current navigation state.
func (c *Controller) view() View {
	v := View{Range: c.Range(), Pages: make(map[Region]report.PageState)}
	for _, r := range []Region{Pages, Referrers} {
		st, _ := c.State(r)
		v.Pages[r] = report.NewPageState(st.Table.Len(), c.pageSize)
	}
	return v
}

// Dispatch runs cmd. Page commands return the table on its new page;
// RangeChanged reloads every region and returns nil.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) (*report.PagedTable, error) {
	if cmd.Kind == RangeChanged {
		rng := cmd.Range.withDefaults()
		if err := rng.Validate(); err != nil {
			return nil, err
		}
	}
	next, reload := Reduce(c.view(), cmd)
	switch cmd.Kind {
	case PreviousPage, NextPage:
		if cmd.Region != Pages && cmd.Region != Referrers {
			return nil, fmt.Errorf("%w: %q has no pages", ErrUnknownRegion, cmd.Region)
		}
		return c.Page(cmd.Region, next.Pages[cmd.Region].Current)
	case RangeChanged:
		if err := c.SetRange(next.Range); err != nil {
			return nil, err
		}
		if reload {
			return nil, c.Refresh(ctx)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command %d", cmd.Kind)
}
