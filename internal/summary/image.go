// Package summary renders dashboard snapshots for people: a PNG delay-risk
// report for Telegram and a styled terminal view for the CLI.
package summary

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fogleman/gg"

	"civicmon/internal/analytics"
	"civicmon/internal/dashboard"
)

// maxImageRows caps the report at the riskiest complaints; the full list
// is served by the API.
const maxImageRows = 25

// Table styling constants, rendered at 2x scale for Telegram clarity
const (
	cellPaddingX  = 20
	cellPaddingY  = 16
	minRowHeight  = 76
	headerHeight  = 88
	fontSize      = 26
	headerFontSz  = 26
	titleFontSz   = 40
	titlePadding  = 150
	footerPadding = 80
	minColWidth   = 110
	maxTeamWidth  = 320.0
	maxWhyWidth   = 620.0
)

// Light theme colors
var (
	bgColor         = color.RGBA{R: 245, G: 247, B: 250, A: 255} // Light gray bg
	titleColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}    // Dark slate
	headerBgColor   = color.RGBA{R: 37, G: 99, B: 235, A: 255}   // Blue
	headerTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255} // White
	rowEvenColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255} // White
	rowOddColor     = color.RGBA{R: 241, G: 245, B: 249, A: 255} // Subtle blue-gray
	textColor       = color.RGBA{R: 30, G: 41, B: 59, A: 255}    // Dark slate
	borderColor     = color.RGBA{R: 203, G: 213, B: 225, A: 255} // Slate border
	footerColor     = color.RGBA{R: 100, G: 116, B: 139, A: 255} // Muted slate
)

// levelColors tint the risk level cell.
var levelColors = map[analytics.DelayLevel]color.RGBA{
	analytics.DelayHigh:   {R: 254, G: 226, B: 226, A: 255}, // Red 100
	analytics.DelayMedium: {R: 254, G: 243, B: 199, A: 255}, // Amber 100
	analytics.DelayLow:    {R: 220, G: 252, B: 231, A: 255}, // Green 100
}

// column definition for the table.
type column struct {
	header   string
	field    func(r *analytics.DelayRisk) string
	maxWidth float64 // 0 means auto
}

// columns defines the table layout.
var columns = []column{
	{"Complaint", func(r *analytics.DelayRisk) string { return r.ComplaintID }, 0},
	{"Category", func(r *analytics.DelayRisk) string { return r.Category.String() }, 0},
	{"Team", func(r *analytics.DelayRisk) string { return r.AssignedTeam }, maxTeamWidth},
	{"Risk", func(r *analytics.DelayRisk) string { return strconv.Itoa(r.RiskOfDelay) }, 0},
	{"Level", func(r *analytics.DelayRisk) string { return strings.ToUpper(string(r.RiskLevel)) }, 0},
	{"Days", func(r *analytics.DelayRisk) string { return strconv.Itoa(r.DaysPending) }, 0},
	{"Why", func(r *analytics.DelayRisk) string { return truncate(strings.Join(r.Reasons, "; "), 160) }, maxWhyWidth},
}

// levelColumn is the index of the "Level" column.
const levelColumn = 4

// findFont locates a font file across Linux and Windows paths.
func findFont(bold bool) string {
	var candidates []string
	if runtime.GOOS == "windows" {
		winRoot := os.Getenv("WINDIR")
		if winRoot == "" {
			winRoot = `C:\Windows`
		}
		if bold {
			candidates = []string{winRoot + `\Fonts\arialbd.ttf`, winRoot + `\Fonts\Arial Bold.ttf`}
		} else {
			candidates = []string{winRoot + `\Fonts\arial.ttf`, winRoot + `\Fonts\Arial.ttf`}
		}
	} else {
		if bold {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
				"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
			}
		} else {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/TTF/DejaVuSans.ttf",
			}
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// useFont switches to the font at path and reports whether it loaded.
// Without a usable system font the context keeps gg's built-in bitmap face.
func useFont(dc *gg.Context, path string, size float64) bool {
	if path == "" {
		return false
	}
	if err := dc.LoadFontFace(path, size); err != nil {
		log.Printf("  ⚠️  Failed to load font %s, using built-in face: %v", path, err)
		return false
	}
	return true
}

// wrapText splits text into multiple lines to fit within maxWidth.
func wrapText(dc *gg.Context, text string, maxWidth float64) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))

	if maxWidth <= 0 {
		return []string{text}
	}
	if w, _ := dc.MeasureString(text); w <= maxWidth {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	currentLine := words[0]
	for _, word := range words[1:] {
		testLine := currentLine + " " + word
		if tw, _ := dc.MeasureString(testLine); tw > maxWidth {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine = testLine
		}
	}
	return append(lines, currentLine)
}

// computeRowHeights calculates the height of each row based on wrapped text.
func computeRowHeights(dc *gg.Context, risks []analytics.DelayRisk, colWidths []float64) []float64 {
	_, lineH := dc.MeasureString("Ay")
	lineSpacing := lineH + 4

	heights := make([]float64, len(risks))
	for rowIdx := range risks {
		maxLines := 1
		for i, col := range columns {
			wrapped := wrapText(dc, col.field(&risks[rowIdx]), colWidths[i]-cellPaddingX*2)
			maxLines = max(maxLines, len(wrapped))
		}
		heights[rowIdx] = max(float64(maxLines)*lineSpacing+cellPaddingY*2, float64(minRowHeight))
	}
	return heights
}

// RenderDelayReport renders the riskiest pending complaints of d as a table
// image and returns PNG bytes.
//
// Rows keep the dashboard order (risk desc, days pending desc, id asc).
// The title carries the snapshot time, never the wall clock, so the same
// snapshot always renders the same image.
func RenderDelayReport(d *dashboard.Dashboard) ([]byte, error) {
	if d == nil || len(d.DelayRisks) == 0 {
		return nil, fmt.Errorf("no pending complaints to render")
	}

	risks := d.DelayRisks
	if len(risks) > maxImageRows {
		risks = risks[:maxImageRows]
	}

	boldFont := findFont(true)
	regularFont := findFont(false)

	// ---- Step 1: Measure column widths ----
	tmpDC := gg.NewContext(1, 1)
	useFont(tmpDC, boldFont, headerFontSz)

	colWidths := make([]float64, len(columns))
	for i, col := range columns {
		w, _ := tmpDC.MeasureString(col.header)
		colWidths[i] = max(w+cellPaddingX*2+4, float64(minColWidth))
	}

	useFont(tmpDC, regularFont, fontSize)
	for rowIdx := range risks {
		for i, col := range columns {
			w, _ := tmpDC.MeasureString(col.field(&risks[rowIdx]))
			colWidths[i] = max(colWidths[i], w+cellPaddingX*2+4)
		}
	}
	for i, col := range columns {
		if col.maxWidth > 0 && colWidths[i] > col.maxWidth {
			colWidths[i] = col.maxWidth
		}
	}

	rowHeights := computeRowHeights(tmpDC, risks, colWidths)

	// ---- Step 2: Calculate canvas size ----
	var totalWidth, totalRowHeight float64
	for _, w := range colWidths {
		totalWidth += w
	}
	for _, h := range rowHeights {
		totalRowHeight += h
	}

	canvasWidth := totalWidth + 80 // 40px margin each side
	canvasHeight := float64(titlePadding) + float64(headerHeight) + totalRowHeight + float64(footerPadding)

	// ---- Step 3: Draw ----
	dc := gg.NewContext(int(canvasWidth), int(canvasHeight))
	dc.SetColor(bgColor)
	dc.Clear()

	// Title and counter strip
	useFont(dc, boldFont, titleFontSz)
	dc.SetColor(titleColor)
	title := fmt.Sprintf("Complaint Delay Risk  ·  %s", d.GeneratedAt.Format("02 Jan 2006, 03:04 PM"))
	dc.DrawStringAnchored(title, canvasWidth/2, 45, 0.5, 0.5)

	useFont(dc, regularFont, fontSize)
	dc.SetColor(footerColor)
	strip := fmt.Sprintf("Likely to delay today: %d   ·   This week: %d   ·   High risk: %d",
		d.Summary.LikelyToDelayToday, d.Summary.ThisWeekPredictedDelays, d.Summary.HighRiskComplaints)
	dc.DrawStringAnchored(strip, canvasWidth/2, 105, 0.5, 0.5)

	tableX := 40.0
	tableY := float64(titlePadding)

	// Header row background (rounded top corners)
	dc.SetColor(headerBgColor)
	dc.DrawRoundedRectangle(tableX, tableY, totalWidth, float64(headerHeight), 16)
	dc.Fill()

	useFont(dc, boldFont, headerFontSz)
	dc.SetColor(headerTextColor)
	x := tableX
	for i, col := range columns {
		dc.DrawStringAnchored(col.header, x+colWidths[i]/2, tableY+float64(headerHeight)/2, 0.5, 0.5)
		x += colWidths[i]
	}

	// Data rows
	useFont(dc, regularFont, fontSize)
	_, lineH := dc.MeasureString("Ay")
	lineSpacing := lineH + 4
	curY := tableY + float64(headerHeight)

	for rowIdx := range risks {
		r := &risks[rowIdx]
		rh := rowHeights[rowIdx]

		if rowIdx%2 == 0 {
			dc.SetColor(rowEvenColor)
		} else {
			dc.SetColor(rowOddColor)
		}
		dc.DrawRectangle(tableX, curY, totalWidth, rh)
		dc.Fill()

		levelX := tableX
		for i := 0; i < levelColumn; i++ {
			levelX += colWidths[i]
		}
		if c, ok := levelColors[r.RiskLevel]; ok {
			dc.SetColor(c)
			dc.DrawRectangle(levelX, curY, colWidths[levelColumn], rh)
			dc.Fill()
		}

		dc.SetColor(borderColor)
		dc.SetLineWidth(0.5)
		dc.DrawLine(tableX, curY+rh, tableX+totalWidth, curY+rh)
		dc.Stroke()

		dc.SetColor(textColor)
		x := tableX
		for i, col := range columns {
			wrapped := wrapText(dc, col.field(r), colWidths[i]-cellPaddingX*2)
			startY := curY + (rh-float64(len(wrapped))*lineSpacing)/2 + lineH // vertically center
			for lineIdx, line := range wrapped {
				dc.DrawString(line, x+cellPaddingX, startY+float64(lineIdx)*lineSpacing)
			}
			x += colWidths[i]
		}
		curY += rh
	}

	// Outer table border
	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	totalTableH := float64(headerHeight) + totalRowHeight
	dc.DrawRoundedRectangle(tableX, tableY, totalWidth, totalTableH, 16)
	dc.Stroke()

	// Vertical column borders
	dc.SetLineWidth(0.5)
	x = tableX
	for i := 0; i < len(columns)-1; i++ {
		x += colWidths[i]
		dc.DrawLine(x, tableY+float64(headerHeight), x, tableY+totalTableH)
		dc.Stroke()
	}

	// Footer
	useFont(dc, regularFont, 24)
	dc.SetColor(footerColor)
	footer := fmt.Sprintf("Showing %d of %d pending complaints", len(risks), len(d.DelayRisks))
	dc.DrawStringAnchored(footer, canvasWidth/2, canvasHeight-30, 0.5, 0.5)

	// ---- Step 4: Encode to PNG ----
	return encodeImage(dc.Image())
}

// WriteDelayReport renders d and writes the PNG to path.
func WriteDelayReport(path string, d *dashboard.Dashboard) ([]byte, error) {
	data, err := RenderDelayReport(d)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report image: %w", err)
	}
	return data, nil
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) > maxLen {
		runes := []rune(s)
		return string(runes[:maxLen]) + "…"
	}
	return s
}
