package dashboard

import (
	"time"

	"github.com/eringen/pubdash/report"
)

// Palette is the admin theme's colours.
var Palette = struct {
	Blue, Green, Orange, Red, Salmon, SalmonLight, Teal, TealDarker, TealDark string
}{
	Blue:        "#71b2d4",
	Green:       "#189370",
	Orange:      "#e9b04d",
	Red:         "#cd3238",
	Salmon:      "#f37e77",
	SalmonLight: "#fcf2f2",
	Teal:        "#43b1b0",
	TealDarker:  "#358c8b",
	TealDark:    "#246060",
}

// ChartConfig is handed to the chart library as is. Everything the chart
// needs, defaults included, travels in it.
type ChartConfig struct {
	Type    string       `json:"type"`
	Data    ChartData    `json:"data"`
	Options ChartOptions `json:"options"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Label                string  `json:"label"`
	BackgroundColor      string  `json:"backgroundColor"`
	BorderColor          string  `json:"borderColor"`
	PointBackgroundColor string  `json:"pointBackgroundColor"`
	PointBorderColor     string  `json:"pointBorderColor"`
	Data                 []int64 `json:"data"`
}

type ChartOptions struct {
	Responsive          bool           `json:"responsive"`
	MaintainAspectRatio bool           `json:"maintainAspectRatio"`
	Animation           ChartAnimation `json:"animation"`
	Legend              ChartLegend    `json:"legend"`
	Scales              ChartScales    `json:"scales"`
}

type ChartAnimation struct {
	Duration int    `json:"duration"`
	Easing   string `json:"easing"`
}

type ChartLegend struct {
	Display bool `json:"display"`
}

type ChartScales struct {
	XAxes []ChartAxis `json:"xAxes"`
}

type ChartAxis struct {
	Ticks ChartTicks `json:"ticks"`
}

type ChartTicks struct {
	AutoSkip      bool `json:"autoSkip"`
	MaxTicksLimit int  `json:"maxTicksLimit"`
	MaxRotation   int  `json:"maxRotation"`
}

// DefaultChartOptions are the options every dashboard chart starts from.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Responsive:          true,
		MaintainAspectRatio: false,
		Animation:           ChartAnimation{Duration: 1000, Easing: "easeInOutQuart"},
		Legend:              ChartLegend{Display: false},
		Scales: ChartScales{XAxes: []ChartAxis{{
			Ticks: ChartTicks{AutoSkip: true, MaxTicksLimit: 4, MaxRotation: 0},
		}}},
	}
}

// NewSessionsChart builds the sessions line chart from ga:date,ga:nthDay
// rows. The last field of each row is the session count.
func NewSessionsChart(rows [][]string) ChartConfig {
	labels := make([]string, len(rows))
	data := make([]int64, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			labels[i] = formatDay(row[0])
		}
		if len(row) > 1 {
			data[i] = report.MetricRow(row).Metric()
		}
	}
	return ChartConfig{
		Type: "line",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{{
				Label:                "Sessions",
				BackgroundColor:      Palette.SalmonLight,
				BorderColor:          Palette.Salmon,
				PointBackgroundColor: Palette.Salmon,
				PointBorderColor:     "#fff",
				Data:                 data,
			}},
		},
		Options: DefaultChartOptions(),
	}
}

// formatDay renders a YYYYMMDD label as "Jan 2, 2006".
func formatDay(s string) string {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return s
	}
	return t.Format("Jan 2, 2006")
}
