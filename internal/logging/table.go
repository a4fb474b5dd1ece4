// Package logging renders analysis displays, cleaning reports and tips for
// synthesized speech. This file contains the table formatting shared by the
// before/after comparison sections.

package logging

import (
	"fmt"
	"math"
	"strings"
)

// MetricRow represents a single row in a comparison table.
// Values are pre-formatted strings so rows can mix precisions.
type MetricRow struct {
	Label          string   // Row label, e.g., "True Peak"
	Values         []string // One value per column (Before, After)
	Unit           string   // Unit suffix, e.g., "dBFS", "" for unitless
	Interpretation string   // Optional interpretation text (only shown if non-empty)
}

// MetricTable formats aligned columns for metric comparison.
type MetricTable struct {
	Headers []string
	Rows    []MetricRow
}

// String renders the table with aligned columns.
// - Labels are left-aligned
// - Values are right-aligned within their column
// - Units follow the last value column
// - The interpretation column only appears if some row has one
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasInterpretation := false
	labelWidth := 0
	unitWidth := 0
	for _, row := range t.Rows {
		hasInterpretation = hasInterpretation || row.Interpretation != ""
		labelWidth = max(labelWidth, len(row.Label))
		unitWidth = max(unitWidth, len(row.Unit))
	}

	valueWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		valueWidths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, val := range row.Values {
			if i < len(valueWidths) {
				valueWidths[i] = max(valueWidths[i], len(val))
			}
		}
	}

	var sb strings.Builder

	sb.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, header := range t.Headers {
		fmt.Fprintf(&sb, "%*s  ", valueWidths[i], header)
	}
	if unitWidth > 0 {
		sb.WriteString(strings.Repeat(" ", unitWidth+1))
	}
	if hasInterpretation {
		sb.WriteString("Interpretation")
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		fmt.Fprintf(&sb, "%-*s  ", labelWidth, row.Label)
		for i := range t.Headers {
			val := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				val = row.Values[i]
			}
			fmt.Fprintf(&sb, "%*s  ", valueWidths[i], val)
		}
		if unitWidth > 0 {
			fmt.Fprintf(&sb, "%-*s ", unitWidth, row.Unit)
		}
		if hasInterpretation {
			sb.WriteString(row.Interpretation)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// NewMetricTable creates a table with Before/After headers.
func NewMetricTable() *MetricTable {
	return &MetricTable{Headers: []string{"Before", "After"}}
}

// AddRow adds a row of pre-formatted values.
func (t *MetricTable) AddRow(label string, values []string, unit string, interpretation string) {
	t.Rows = append(t.Rows, MetricRow{
		Label:          label,
		Values:         values,
		Unit:           unit,
		Interpretation: interpretation,
	})
}

// AddMetricRow adds a row of numeric values, one per column.
// Pass math.NaN() for missing values; they display as "-".
func (t *MetricTable) AddMetricRow(label string, values []float64, decimals int, unit string, interpretation string) {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = formatMetric(v, decimals)
	}
	t.AddRow(label, formatted, unit, interpretation)
}

// =============================================================================
// Metric Formatting Helpers
// =============================================================================

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// DigitalSilenceThreshold is the dBFS level treated as digital silence.
const DigitalSilenceThreshold = -120.0

// formatMetric formats a value to the given precision, switching to
// scientific notation below 0.0001. NaN and Inf show as MissingValue.
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatOptional formats an indeterminate measurement. Nil shows as
// MissingValue, never as zero.
func formatOptional(value *float64, decimals int) string {
	if value == nil {
		return MissingValue
	}
	return formatMetric(*value, decimals)
}

// formatMetricDB formats a dB value, showing "< -120" at the floor.
func formatMetricDB(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 1) {
		return MissingValue
	}
	if math.IsInf(value, -1) || value <= DigitalSilenceThreshold {
		return "< -120"
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricPeak formats a linear level (0.0-1.0 scale) in dBFS.
func formatMetricPeak(value float64, decimals int) string {
	if math.IsNaN(value) {
		return MissingValue
	}
	if value <= 0 {
		return "< -120"
	}
	return formatMetricDB(20*math.Log10(value), decimals)
}

// formatMetricSigned formats a value with an explicit sign, e.g. "+2.5".
func formatMetricSigned(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%+.*f", decimals, value)
}

// formatMetricWithUnit returns "value unit", or just the value when unit is
// empty or the value is missing.
func formatMetricWithUnit(value float64, decimals int, unit string) string {
	formatted := formatMetric(value, decimals)
	if formatted == MissingValue || unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// formatPercent formats a 0-1 ratio as a percentage.
func formatPercent(ratio float64, decimals int) string {
	return formatMetric(ratio*100, decimals)
}
