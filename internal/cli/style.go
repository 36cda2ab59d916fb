package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/engine"
)

var (
	primary = lipgloss.Color("#4ECDC4")
	warning = lipgloss.Color("#FFB347")
	green   = lipgloss.Color("#95E1A3")
	muted   = lipgloss.Color("#888888")

	header  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	success = lipgloss.NewStyle().Foreground(green)
	warn    = lipgloss.NewStyle().Bold(true).Foreground(warning)
	dim     = lipgloss.NewStyle().Foreground(muted)
)

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		header = lipgloss.NewStyle()
		success = lipgloss.NewStyle()
		warn = lipgloss.NewStyle()
		dim = lipgloss.NewStyle()
	}
}

func printReconcileReport(w io.Writer, r engine.ReconcileReport) {
	fmt.Fprintln(w, header.Render("Reconcile"))
	row := func(label string, v int, style lipgloss.Style) {
		fmt.Fprintf(w, "  %-10s %s\n", label, style.Render(strconv.Itoa(v)))
	}
	row("checked", r.Checked, lipgloss.NewStyle())
	row("repaired", r.Repaired, success)
	failed := dim
	if r.Failed > 0 {
		failed = warn
	}
	row("failed", r.Failed, failed)
	fmt.Fprintln(w, dim.Render("  took "+r.Elapsed.Round(time.Millisecond).String()))
}

func printDrift(w io.Writer, found []apperr.DriftWarning) {
	if len(found) == 0 {
		fmt.Fprintln(w, success.Render("✓")+" no drift")
		return
	}
	fmt.Fprintln(w, header.Render(fmt.Sprintf("%d drift warning(s)", len(found))))
	for _, d := range found {
		fmt.Fprintf(w, "  %s %s %s\n", warn.Render(d.Kind), dim.Render(d.ClientID), d.Detail)
	}
}
