package summary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"civicmon/internal/analytics"
	"civicmon/internal/dashboard"
)

// terminalRows caps the long tables of the terminal view.
const terminalRows = 10

// Colors used in the terminal view.
var (
	colorPrimary = lipgloss.Color("62")  // Purple
	colorMuted   = lipgloss.Color("241") // Gray
	colorHigh    = lipgloss.Color("196") // Red
	colorMedium  = lipgloss.Color("214") // Amber
	colorLow     = lipgloss.Color("78")  // Green
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(colorPrimary).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginTop(1)

	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Foreground(colorMedium)
)

// levelStyle colors a low/medium/high/critical label.
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "critical", "high":
		return cellStyle.Foreground(colorHigh).Bold(true)
	case "medium":
		return cellStyle.Foreground(colorMedium)
	case "low":
		return cellStyle.Foreground(colorLow)
	}
	return cellStyle
}

// newTable builds a bordered table. levelCol is the column whose text is a
// level label to be colored, or -1.
func newTable(headers []string, rows [][]string, levelCol int) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == levelCol && row >= 0 && row < len(rows) {
				return levelStyle(rows[row][col])
			}
			return cellStyle
		})
}

// RenderTerminal formats d for a terminal.
func RenderTerminal(d *dashboard.Dashboard) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📊 Complaint Analytics  ·  " + d.GeneratedAt.Format("02 Jan 2006, 15:04 MST")))
	b.WriteString("\n\n")

	h := d.Headline
	fmt.Fprintf(&b, "Total %d   Pending %d   Resolved %d   Verified %d   Overdue %d\n",
		h.Total, h.Pending, h.Resolved, h.Verified, h.Overdue)
	fmt.Fprintf(&b, "Resolution rate %.1f%%   Avg resolution %.1f days   Verification rate %.1f%%\n",
		h.ResolutionRate, h.AvgResolutionDays, h.VerificationRate)
	fmt.Fprintf(&b, "Submitted this week %d (%s)   Resolved this week %d (%s)\n",
		d.Weekly.Submitted.Last7Days, trendLabel(d.Weekly.Submitted),
		d.Weekly.Resolved.Last7Days, trendLabel(d.Weekly.Resolved))

	b.WriteString(sectionStyle.Render("Departments"))
	b.WriteString("\n")
	deptRows := make([][]string, 0, len(d.Departments))
	for _, l := range d.Departments {
		deptRows = append(deptRows, []string{
			l.Department,
			strconv.Itoa(l.CurrentOpenComplaints),
			strconv.Itoa(l.ResolvedCount),
			fmt.Sprintf("%.1f", l.AvgTimeToResolve),
			string(l.DelayRisk),
		})
	}
	b.WriteString(newTable([]string{"Department", "Open", "Resolved", "Avg days", "Risk"}, deptRows, 4).Render())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Delay risk  ·  today %d  ·  this week %d  ·  high %d",
		d.Summary.LikelyToDelayToday, d.Summary.ThisWeekPredictedDelays, d.Summary.HighRiskComplaints)))
	b.WriteString("\n")
	b.WriteString(delayTable(d.DelayRisks))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Hotspots"))
	b.WriteString("\n")
	if len(d.Hotspots) == 0 {
		b.WriteString(mutedStyle.Render("No complaints with usable coordinates"))
	} else {
		rows := make([][]string, 0, len(d.Hotspots))
		for _, hs := range head(d.Hotspots, terminalRows) {
			rows = append(rows, []string{
				hs.ZoneID,
				fmt.Sprintf("%.4f, %.4f", hs.Centroid.Lat, hs.Centroid.Lng),
				strconv.Itoa(hs.Count),
				fmt.Sprintf("%.2f", hs.Score),
				string(hs.Level),
				hs.DominantCategory.String(),
			})
		}
		b.WriteString(newTable([]string{"Zone", "Centroid", "Count", "Score", "Level", "Mostly"}, rows, 4).Render())
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Month forecast"))
	b.WriteString("\n")
	if d.InsufficientForecastData {
		b.WriteString(mutedStyle.Render("Not enough complaints for a forecast yet"))
	} else {
		seasonal := make(map[string]analytics.SeasonalPrediction, len(d.Seasonal))
		for _, s := range d.Seasonal {
			seasonal[s.Category.String()] = s
		}
		rows := make([][]string, 0, len(d.Forecasts))
		for _, f := range d.Forecasts {
			rows = append(rows, []string{
				f.Category.String(),
				f.Period,
				strconv.Itoa(f.Projected),
				fmt.Sprintf("%+.0f%%", f.TrendPercent),
				strconv.Itoa(f.Confidence) + "%",
				seasonal[f.Category.String()].Label,
			})
		}
		b.WriteString(newTable([]string{"Category", "Month", "Projected", "Trend", "Confidence", "Season"}, rows, -1).Render())
	}
	b.WriteString("\n")

	if len(d.Warnings) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Data quality (%d)", len(d.Warnings))))
		b.WriteString("\n")
		for _, w := range head(d.Warnings, terminalRows) {
			b.WriteString(warnStyle.Render("⚠️  " + w))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func delayTable(risks []analytics.DelayRisk) string {
	if len(risks) == 0 {
		return mutedStyle.Render("No pending complaints")
	}
	rows := make([][]string, 0, terminalRows)
	for _, r := range head(risks, terminalRows) {
		rows = append(rows, []string{
			r.ComplaintID,
			r.Category.String(),
			strconv.Itoa(r.RiskOfDelay),
			string(r.RiskLevel),
			strconv.Itoa(r.DaysPending),
			truncate(strings.Join(r.Reasons, "; "), 70),
		})
	}
	return newTable([]string{"Complaint", "Category", "Risk", "Level", "Days", "Why"}, rows, 3).Render()
}

func trendLabel(t analytics.Trend) string {
	return fmt.Sprintf("%s %+.0f%%", t.Direction, t.ChangePercent)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
