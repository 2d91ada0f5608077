package main

import (
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	dto "github.com/prometheus/client_model/go"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

func renderResults(out io.Writer, p *plan, results []string) error {
	table := tablewriter.NewWriter(out)
	table.Header("#", "Proc", "Args", "Result")
	for i, res := range results {
		if err := table.Append(strconv.Itoa(i), p.names[i], p.args[i].String(), res); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderProcs(out io.Writer, b *builtins) error {
	table := tablewriter.NewWriter(out)
	table.Header("Name", "Computes")
	for _, name := range b.registry.Names() {
		if err := table.Append(name, b.help[name]); err != nil {
			return err
		}
	}
	return table.Render()
}

// renderStats prints one row per metric: counters and gauges by value, histograms by
// observation count and sum.
func renderStats(out io.Writer, families []*dto.MetricFamily) error {
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	bold.Fprintln(out, "metrics")
	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value string
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = formatFloat(m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				value = formatFloat(m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				value = "count=" + strconv.FormatUint(h.GetSampleCount(), 10) +
					" sum=" + strconv.FormatFloat(h.GetSampleSum(), 'f', 3, 64) + "s"
			default:
				continue
			}
			if err := table.Append(mf.GetName(), value); err != nil {
				return err
			}
		}
	}
	return table.Render()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
