// Package report renders time analysis results as reStructuredText
// tables, static plots and interactive HTML charts.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/antispoofing.motion/internal/timeanalysis"
)

// Header describes the run a report belongs to.
type Header struct {
	Title      string
	InputDir   string
	FeatureDir string
}

// Title builds the canonical report title.
func Title(windowSize, overlap int, protocol, support string) string {
	return fmt.Sprintf("Time Analysis, Window *%d*, Overlap *%d*, Protocol *%s*, Support *%s*",
		windowSize, overlap, protocol, support)
}

// WriteAnalysis writes the full report: a title block, the input
// directories and one table per view.
func WriteAnalysis(w io.Writer, h Header, a *timeanalysis.Analyzer) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", len(h.Title)+2)
	fmt.Fprintf(bw, "%s\n %s \n%s\n", rule, h.Title, rule)
	fmt.Fprintf(bw, "\nInput directory\n  %s\n", h.InputDir)
	fmt.Fprintf(bw, "\nFeat. directory\n  %s\n\n", h.FeatureDir)

	section(bw, "Instantaneous Analysis")
	if err := a.WriteTable(bw, timeanalysis.Instantaneous); err != nil {
		return err
	}

	subtitle := "Averaged Analysis"
	if a.RunningAverage() {
		subtitle = "Thresholded " + subtitle
	}
	bw.WriteString("\n")
	section(bw, subtitle)
	if err := a.WriteTable(bw, timeanalysis.Cumulative); err != nil {
		return err
	}
	return bw.Flush()
}

func section(w *bufio.Writer, title string) {
	fmt.Fprintf(w, "%s\n%s\n\n", title, strings.Repeat("-", len(title)))
}
