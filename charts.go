package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"districtfinder/internal/browse"
)

// BarChart creates a horizontal bar chart
func BarChart(label string, value, max float64, width int, color lipgloss.Color) string {
	if max == 0 {
		max = value
	}

	percentage := 0.0
	if max > 0 {
		percentage = value / max
	}
	if percentage > 1 {
		percentage = 1
	}

	filledWidth := int(float64(width) * percentage)
	if filledWidth < 0 {
		filledWidth = 0
	}
	if filledWidth > width {
		filledWidth = width
	}

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	barStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return fmt.Sprintf("%s %s%s", label, barStyle.Render(filled), emptyStyle.Render(empty))
}

// PageIndicator shows how far through a district's schools the current page
// is, e.g. "schools 11-20 of 25 ████░░".
func PageIndicator(page, total, width int) string {
	if total == 0 {
		return ""
	}
	start, end := browse.PageBounds(page, total)
	label := fmt.Sprintf("schools %d-%d of %d", start+1, end, total)
	return BarChart(label, float64(end), float64(total), width, lipgloss.Color("62"))
}
