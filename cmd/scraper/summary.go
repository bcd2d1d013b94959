package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/maltedev/preciosjustos-scraper/internal/jobs"
)

// printSummary renders one row per region, sorted by code.
func printSummary(w io.Writer, results []jobs.Result) {
	sorted := append([]jobs.Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Region.Code < sorted[j].Region.Code
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Region", "Status", "Pages", "Records", "Duration", "Output"})

	var pages, records, failed int
	for _, r := range sorted {
		status := "ok"
		output := strings.Join(r.Files, ", ")
		if r.Failed() {
			status = "failed (" + jobs.ErrorType(r.Err) + ")"
			output = r.Err.Error()
			failed++
		}
		pages += r.Pages
		records += r.Records

		t.AppendRow(table.Row{r.Region.Code, status, r.Pages, r.Records, r.Duration.Round(time.Millisecond), output})
	}

	t.AppendFooter(table.Row{"Total", failedLabel(failed), pages, records, "", ""})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

func failedLabel(failed int) string {
	if failed == 0 {
		return "all ok"
	}
	return fmt.Sprintf("%d failed", failed)
}
