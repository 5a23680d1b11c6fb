package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	dto "github.com/prometheus/client_model/go"
	"github.com/schollz/progressbar/v3"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func colorPrintLn(c *color.Color, a ...any) {
	_, _ = c.Println(a...)
}

func colorPrintf(c *color.Color, format string, a ...any) {
	_, _ = c.Printf(format, a...)
}

func makeProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
	)
}

func renderRunResults(report *runReport) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Task", "Result", "Worker", "Elapsed", "Timeouts")

	for _, r := range report.results {
		result := fmt.Sprintf("%d", r.value)
		if r.err != nil {
			result = "error: " + r.err.Error()
		}
		_ = table.Append(
			fmt.Sprintf("%d", r.id),
			result,
			fmt.Sprintf("%d", r.worker),
			r.elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%d", r.timeouts),
		)
	}

	if err := table.Render(); err != nil {
		colorPrintLn(red, "Error in rendering results table")
	}
}

func renderRunSummary(report *runReport, maxWorkers int) {
	fmt.Println()
	colorPrintf(bold, "Threads used: %d of %d\n", report.threads, maxWorkers)
	colorPrintf(bold, "Total time:   %v\n", report.elapsed.Round(time.Millisecond))

	failed := 0
	for _, r := range report.results {
		if r.err != nil {
			failed++
		}
	}
	switch {
	case failed > 0:
		colorPrintf(red, "%d tasks failed\n", failed)
	case report.rejected > 0:
		colorPrintf(yellow, "%d tasks rejected: queue full\n", report.rejected)
	default:
		colorPrintLn(green, "All tasks completed")
	}
}

func renderSweep(results []sweepResult, tasks int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Workers", "Threads Used", "Time", "Tasks/sec", "Rejected")

	for _, r := range results {
		throughput := 0.0
		if r.elapsed > 0 {
			throughput = float64(tasks-r.rejected) / r.elapsed.Seconds()
		}
		_ = table.Append(
			fmt.Sprintf("%d", r.workers),
			fmt.Sprintf("%d", r.threads),
			r.elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%.1f", throughput),
			fmt.Sprintf("%d", r.rejected),
		)
	}

	if err := table.Render(); err != nil {
		colorPrintLn(red, "Error in rendering sweep table")
	}
}

func renderMetrics(families []*dto.MetricFamily) {
	fmt.Println()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Labels", "Value")

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value string
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				value = fmt.Sprintf("%g", m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}
			_ = table.Append(mf.GetName(), labelString(m.GetLabel()), value)
		}
	}

	if err := table.Render(); err != nil {
		colorPrintLn(red, "Error in rendering metrics table")
	}
}

func labelString(pairs []*dto.LabelPair) string {
	s := ""
	for i, lp := range pairs {
		if i > 0 {
			s += ","
		}
		s += lp.GetName() + "=" + lp.GetValue()
	}
	return s
}
