package views

// Admin is what every admin page needs to render its chrome.
type Admin struct {
	Name        string // product name shown in the title bar
	CSRFToken   string
	ChartScript string // URL of the chart library, served by the host
}

// DashboardPage is the analytics dashboard for one site.
type DashboardPage struct {
	Admin
	SiteName    string
	Start       string
	End         string
	RangeError  string
	Problems    []string
	Regions     []Region
	ExportURL   string
	ExportReady bool
	Switcher    *Switcher
}

// Region is one independently loading area of the dashboard.
type Region struct {
	ID    string
	Title string
	URL   string // fragment that replaces the spinner once loaded
}

// Switcher is the site dropdown. Options carry the dashboard URL of each
// site.
type Switcher struct {
	Action  string
	Initial string
	Options []SwitchOption
}

type SwitchOption struct {
	Label    string
	URL      string
	Selected bool
}

// PageLinks are the pagination controls below a table. An empty URL renders
// the control disabled.
type PageLinks struct {
	Number  int
	Count   int
	PrevURL string
	NextURL string
}
