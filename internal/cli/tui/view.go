package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/haskel/kstar/internal/evaluate"
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{m.renderTitleBar()}

	if m.latest == nil {
		sections = append(sections, helpStyle.Render("  waiting for the first report..."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections,
		m.renderScores(),
		m.renderModel(),
		m.renderResources(),
		m.renderFooter(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("KSTAR EVALUATION")
	if m.config.Relation != "" {
		title += helpStyle.Render(" " + m.config.Relation)
	}

	status := runningStyle.Render("running")
	if m.finished {
		status = doneStyle.Render("finished")
	}
	rightPart := fmt.Sprintf("%s | %s", status, helpStyle.Render("q:quit"))

	spacing := m.width - lipgloss.Width(title) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	return title + strings.Repeat(" ", spacing) + rightPart
}

func (m Model) renderScores() string {
	metrics := m.latest.Metrics
	lines := []string{sectionHeaderStyle.Render("  Prequential scores")}

	switch metrics.Task {
	case evaluate.TaskClassification:
		lines = append(lines,
			"  "+renderBar("Accuracy", metrics.Accuracy*100, 30, scoreColor),
			"  "+renderBar("Kappa   ", clampPercent(metrics.Kappa*100), 30, scoreColor),
		)
	case evaluate.TaskRegression:
		lines = append(lines, fmt.Sprintf("  %s %s   %s %s",
			labelStyle.Render("MAE"), valueStyle.Render(fmt.Sprintf("%.4f", metrics.MAE)),
			labelStyle.Render("RMSE"), valueStyle.Render(fmt.Sprintf("%.4f", metrics.RMSE)),
		))
	}

	lines = append(lines, fmt.Sprintf("  %s %s", labelStyle.Render("Trend   "), sparkline(m.accuracy)))
	return strings.Join(lines, "\n")
}

func (m Model) renderModel() string {
	lines := []string{sectionHeaderStyle.Render("  Model")}

	mm := m.latest.Model
	if mm == nil {
		return strings.Join(append(lines, helpStyle.Render("  no measurements")), "\n")
	}

	fill := 0.0
	if mm.WindowCapacity > 0 {
		fill = float64(mm.WindowSize) / float64(mm.WindowCapacity) * 100
	}
	lines = append(lines,
		fmt.Sprintf("  %s %s", renderBar("Window  ", fill, 30, scoreColor),
			valueStyle.Render(fmt.Sprintf("%d/%d", mm.WindowSize, mm.WindowCapacity))),
		"  "+renderBar("Cache   ", mm.Cache.HitRate*100, 30, scoreColor),
		fmt.Sprintf("  %s %s   %s %d   %s %d",
			labelStyle.Render("Engine"), valueStyle.Render(mm.State),
			labelStyle.Render("Generation"), mm.Generation,
			labelStyle.Render("Cache entries"), mm.Cache.Entries,
		),
	)
	return strings.Join(lines, "\n")
}

func (m Model) renderResources() string {
	res := m.latest.Resources
	lines := []string{
		sectionHeaderStyle.Render("  Resources"),
		"  " + renderBar("Memory  ", res.Headroom.UsagePercent, 30, loadColor),
		fmt.Sprintf("  %s %s   %s %.1f%%   %s %d",
			labelStyle.Render("RSS"), valueStyle.Render(formatBytes(res.Process.RSSBytes)),
			labelStyle.Render("CPU"), res.Process.CPUPercent,
			labelStyle.Render("Goroutines"), res.Process.Goroutines,
		),
	}
	if res.Headroom.Low {
		lines = append(lines, "  "+warningStyle.Render(fmt.Sprintf("Low memory: %s available, floor %s",
			formatBytes(res.Headroom.AvailableBytes), formatBytes(res.Headroom.FloorBytes))))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	p := m.latest
	return helpStyle.Render(fmt.Sprintf(
		"  Instances: %s │ %.0f inst/s │ Elapsed: %s │ %s",
		formatNumber(p.Instances),
		p.InstancesPerSec,
		p.Elapsed.Round(time.Millisecond),
		m.config.Source,
	))
}

func renderBar(label string, percent float64, width int, color func(float64) lipgloss.Color) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	filledBar := lipgloss.NewStyle().Foreground(color(percent)).Render(strings.Repeat("█", filled))
	emptyBar := progressBarEmptyStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s [%s%s] %5.1f%%", labelStyle.Render(label), filledBar, emptyBar, percent)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values between their own min and max.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		i := len(sparkRunes) - 1
		if hi > lo {
			i = int((v - lo) / (hi - lo) * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[i])
	}
	return valueStyle.Render(b.String())
}

func clampPercent(p float64) float64 {
	return max(0, min(100, p))
}

func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func formatBytes(n uint64) string {
	const mib = 1024 * 1024
	if n >= 1024*mib {
		return fmt.Sprintf("%.2f GiB", float64(n)/1024/mib)
	}
	return fmt.Sprintf("%.1f MiB", float64(n)/mib)
}
