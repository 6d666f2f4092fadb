package report

import (
	"io"

	"github.com/colorfulnotion/bpfgraph/ebpf"
	"github.com/colorfulnotion/bpfgraph/graph"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// NewKindChart builds a bar chart of the instruction kind distribution.
// Kinds that do not occur are left out.
func NewKindChart(stats *graph.ProgramStats, title string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Instruction kinds",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var labels []string
	var data []opts.BarData
	for _, kind := range ebpf.Kinds() {
		n := stats.KindDistribution[kind]
		if n == 0 {
			continue
		}
		labels = append(labels, kind.String())
		data = append(data, opts.BarData{Value: n})
	}
	bar.SetXAxis(labels).AddSeries("instructions", data)
	return bar
}

// WriteKindChart renders the kind chart as a standalone HTML page.
func WriteKindChart(w io.Writer, stats *graph.ProgramStats, title string) error {
	return NewKindChart(stats, title).Render(w)
}
