package timeanalysis

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LastStep asks WriteMisclassified for the highest time in the report.
const LastStep = -1

const cellSpacing = 1

var tableHeader = [...]string{"Frame", "FRR", "#FR", "FAR", "#FA", "HTER"}

func formatRow(e Entry) [6]string {
	return [6]string{
		fmt.Sprintf("%d", e.Time),
		fmt.Sprintf("%.2f%%", e.FRR),
		fmt.Sprintf("%d", len(e.FalseRejections)),
		fmt.Sprintf("%.2f%%", e.FAR),
		fmt.Sprintf("%d", len(e.FalseAccepts)),
		fmt.Sprintf("%.2f%%", e.HTER),
	}
}

// WriteTable writes a reStructuredText simple table of one view. Runs of
// consecutive steps with the same (#FR, #FA) counts are collapsed: the
// first step of a run is printed and the rest become a single "..." row.
// The full data stays available through Entries.
func (a *Analyzer) WriteTable(w io.Writer, m Mode) error {
	entries := a.reports[m].entries

	rows := make([][6]string, len(entries))
	var widths [6]int
	for i, h := range tableHeader {
		widths[i] = len(h)
	}
	for i, e := range entries {
		rows[i] = formatRow(e)
		for j, cell := range rows[i] {
			widths[j] = max(widths[j], len(cell))
		}
	}
	for j := range widths {
		widths[j] += 2 * cellSpacing
	}

	bw := bufio.NewWriter(w)
	line := func(cells []string) {
		bw.WriteString(strings.Join(cells, " "))
		bw.WriteByte('\n')
	}

	hline := make([]string, 6)
	header := make([]string, 6)
	dots := make([]string, 6)
	for j, width := range widths {
		hline[j] = strings.Repeat("=", width)
		header[j] = center(tableHeader[j], width)
		dots[j] = center("...", width)
	}

	line(hline)
	line(header)
	line(hline)

	curFR, curFA := -1, -1
	collapsed := false
	for i, e := range entries {
		if len(e.FalseRejections) == curFR && len(e.FalseAccepts) == curFA {
			if !collapsed {
				line(dots)
				collapsed = true
			}
			continue
		}
		cells := make([]string, 6)
		for j, cell := range rows[i] {
			cells[j] = center(rjust(cell, widths[j]-2*cellSpacing), widths[j])
		}
		line(cells)
		curFR, curFA = len(e.FalseRejections), len(e.FalseAccepts)
		collapsed = false
	}
	line(hline)

	return bw.Flush()
}

// WriteMisclassified lists the falsely rejected real files and the falsely
// accepted attack files at one time. Pass LastStep for the highest time.
func (a *Analyzer) WriteMisclassified(w io.Writer, m Mode, at int) error {
	if at == LastStep {
		last, ok := a.LastTime(m)
		if !ok {
			return fmt.Errorf("%w: %s report is empty", ErrNoSuchStep, m)
		}
		at = last
	}
	e, ok := a.Entry(m, at)
	if !ok {
		return fmt.Errorf("%w: frame %d not in %s report", ErrNoSuchStep, at, m)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Misclassified Real-Accesses (FR) at frame %d\n", at)
	for _, id := range e.FalseRejections {
		fmt.Fprintf(bw, "%s\n", id)
	}
	fmt.Fprintf(bw, "\nMisclassified Attacks (FA) at frame %d\n", at)
	for _, id := range e.FalseAccepts {
		fmt.Fprintf(bw, "%s\n", id)
	}
	return bw.Flush()
}

// center pads s to width, putting the odd space on the same side Python's
// str.center does.
func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad/2 + (pad & width & 1)
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

func rjust(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
