package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/haskel/kstar/internal/evaluate"
)

// Summary renders a boxed, styled result block for non-interactive output.
func Summary(source string, p evaluate.Progress) string {
	rows := [][2]string{
		{"source", source},
		{"instances", formatNumber(p.Instances)},
		{"elapsed", p.Elapsed.Round(time.Millisecond).String()},
		{"throughput", fmt.Sprintf("%.0f inst/s", p.InstancesPerSec)},
	}

	switch p.Metrics.Task {
	case evaluate.TaskClassification:
		rows = append(rows,
			[2]string{"accuracy", fmt.Sprintf("%.2f%%", p.Metrics.Accuracy*100)},
			[2]string{"kappa", fmt.Sprintf("%.4f", p.Metrics.Kappa)},
		)
	case evaluate.TaskRegression:
		rows = append(rows,
			[2]string{"mae", fmt.Sprintf("%.4f", p.Metrics.MAE)},
			[2]string{"rmse", fmt.Sprintf("%.4f", p.Metrics.RMSE)},
		)
	}

	if mm := p.Model; mm != nil {
		rows = append(rows,
			[2]string{"window", fmt.Sprintf("%d/%d", mm.WindowSize, mm.WindowCapacity)},
			[2]string{"cache hit rate", fmt.Sprintf("%.2f", mm.Cache.HitRate)},
		)
	}
	if rss := p.Resources.Process.RSSBytes; rss > 0 {
		rows = append(rows, [2]string{"rss", formatBytes(rss)})
	}

	lines := []string{titleStyle.Render("K* prequential evaluation")}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-15s", r[0])), valueStyle.Render(r[1])))
	}
	return summaryBoxStyle.Render(strings.Join(lines, "\n"))
}
