package status

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/splunkctl/internal/state"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

type palette struct {
	title, section, dim, ready, failed, warning lipgloss.Style
}

func newPalette(color bool) palette {
	if !color {
		plain := lipgloss.NewStyle()
		return palette{plain, plain, plain, plain, plain, plain}
	}
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorWhite),
		section: lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		dim:     lipgloss.NewStyle().Foreground(colorDim),
		ready:   lipgloss.NewStyle().Foreground(colorGreen),
		failed:  lipgloss.NewStyle().Foreground(colorRed),
		warning: lipgloss.NewStyle().Foreground(colorYellow),
	}
}

func (p palette) status(s state.Status, stale bool) lipgloss.Style {
	switch {
	case s == state.StatusReady:
		return p.ready
	case s == state.StatusFailed:
		return p.failed
	case stale:
		return p.warning
	default:
		return p.dim
	}
}

// ShouldColor reports whether output to f should be colored.
func ShouldColor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render writes a human-readable report.
func Render(w io.Writer, st *ClusterStatus, color bool) error {
	p := newPalette(color)
	var b strings.Builder

	b.WriteString(p.title.Render(fmt.Sprintf("Splunk cluster %s", st.Cluster)))
	b.WriteString("\n")
	b.WriteString(p.dim.Render(fmt.Sprintf("  state version %d, cluster master %s", st.Version, orDash(st.ClusterMasterAddress))))
	b.WriteString("\n\n")

	b.WriteString(p.section.Render("Roles"))
	b.WriteString("\n")
	for _, r := range st.Roles {
		if r.Total() == 0 && r.Desired <= 0 {
			continue
		}
		desired := "?"
		if r.Desired >= 0 {
			desired = fmt.Sprint(r.Desired)
		}
		line := fmt.Sprintf("  %-14s %d/%s ready", r.Role, r.Counts[state.StatusReady], desired)
		if f := r.Counts[state.StatusFailed]; f > 0 {
			line += p.failed.Render(fmt.Sprintf(", %d failed", f))
		}
		if inFlight := r.Total() - r.Counts[state.StatusReady] - r.Counts[state.StatusFailed]; inFlight > 0 {
			line += fmt.Sprintf(", %d in progress", inFlight)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.section.Render("Nodes"))
	b.WriteString("\n")
	b.WriteString(p.dim.Render(fmt.Sprintf("  %-32s %-12s %-16s %-21s %s", "NAME", "STATUS", "ADDRESS", "INSTANCE", "DETAIL")))
	b.WriteString("\n")
	for _, n := range st.Nodes {
		detail := ""
		if n.Cause != "" {
			detail = fmt.Sprintf("%s: %s", n.Cause, n.Diagnostic)
		}
		if n.Stale {
			detail = strings.TrimSpace("stale since " + n.UpdatedAt.UTC().Format("2006-01-02 15:04") + " " + detail)
		}
		fmt.Fprintf(&b, "  %-32s %s %-16s %-21s %s\n",
			n.Name,
			p.status(n.Status, n.Stale).Render(fmt.Sprintf("%-12s", n.Status)),
			orDash(n.Address),
			orDash(n.ResourceID),
			detail,
		)
	}

	if len(st.Missing) > 0 {
		b.WriteString("\n")
		b.WriteString(p.warning.Render("Not yet provisioned: " + strings.Join(st.Missing, ", ")))
		b.WriteString("\n")
	}
	if len(st.Orphans) > 0 {
		b.WriteString("\n")
		b.WriteString(p.warning.Render("No longer desired (review and remove manually): " + strings.Join(st.Orphans, ", ")))
		b.WriteString("\n")
	}
	if len(st.Findings) > 0 {
		b.WriteString("\n")
		b.WriteString(p.section.Render("Audit"))
		b.WriteString("\n")
		for _, f := range st.Findings {
			b.WriteString(p.failed.Render(fmt.Sprintf("  %-32s %-16s %s", f.Node, f.Kind, f.Detail)))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, st *ClusterStatus) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
