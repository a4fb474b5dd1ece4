package logging

import (
	"math"
	"strings"
	"testing"
)

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"zero", 0.0, 2, "0.00"},
		{"positive", 3.14159, 2, "3.14"},
		{"negative", -16.5, 1, "-16.5"},
		{"large", 12345.6789, 2, "12345.68"},
		{"small_normal", 0.001, 3, "0.001"},
		{"very_small_scientific", 0.00001, 2, "1.00e-05"},
		{"very_small_negative", -0.00001, 2, "-1.00e-05"},
		{"nan", math.NaN(), 2, MissingValue},
		{"positive_inf", math.Inf(1), 2, MissingValue},
		{"negative_inf", math.Inf(-1), 2, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetric(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetric(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatOptional(t *testing.T) {
	v := -42.25
	zero := 0.0

	if got := formatOptional(nil, 1); got != MissingValue {
		t.Errorf("formatOptional(nil) = %q, want %q", got, MissingValue)
	}
	if got := formatOptional(&v, 1); got != "-42.2" && got != "-42.3" {
		t.Errorf("formatOptional(-42.25) = %q", got)
	}
	if got := formatOptional(&zero, 1); got != "0.0" {
		t.Errorf("formatOptional(0) = %q, want 0.0", got)
	}
}

func TestFormatMetricSigned(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"positive", 2.5, 1, "+2.5"},
		{"negative", -1.2, 1, "-1.2"},
		{"zero", 0.0, 1, "+0.0"},
		{"nan", math.NaN(), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricSigned(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricSigned(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricWithUnit(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		unit     string
		want     string
	}{
		{"with_unit", -16.0, 1, "LUFS", "-16.0 LUFS"},
		{"no_unit", 1234.5, 1, "", "1234.5"},
		{"nan_with_unit", math.NaN(), 1, "Hz", MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricWithUnit(tt.value, tt.decimals, tt.unit)
			if got != tt.want {
				t.Errorf("formatMetricWithUnit(%v, %d, %q) = %q, want %q", tt.value, tt.decimals, tt.unit, got, tt.want)
			}
		})
	}
}

func TestMetricTableString(t *testing.T) {
	t.Run("basic_two_column", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("True Peak", []string{"-0.2", "-1.0"}, "dBFS", "")
		table.AddRow("SNR", []string{"18.5", "31.0"}, "dB", "")

		output := table.String()

		for _, want := range []string{"Before", "After", "True Peak", "-1.0", "dBFS"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("with_interpretation", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Noise Floor", []string{"-50.0", "-55.0"}, "dB", "Good noise reduction")

		output := table.String()

		if !strings.Contains(output, "Interpretation") {
			t.Error("Output should contain 'Interpretation' header when rows have interpretations")
		}
		if !strings.Contains(output, "Good noise reduction") {
			t.Error("Output should contain interpretation text")
		}
	})

	t.Run("missing_values", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Test Metric", []string{"-10.0"}, "dB", "")

		if output := table.String(); !strings.Contains(output, " -  ") {
			t.Errorf("Missing values should display as dash:\n%s", output)
		}
	})

	t.Run("empty_table", func(t *testing.T) {
		if output := NewMetricTable().String(); output != "" {
			t.Errorf("Empty table should return empty string, got %q", output)
		}
	})

	t.Run("add_metric_row_with_nan", func(t *testing.T) {
		table := NewMetricTable()
		table.AddMetricRow("Test", []float64{-23.5, math.NaN()}, 1, "dB", "")

		lines := strings.Split(table.String(), "\n")
		if len(lines) < 2 {
			t.Fatal("Expected at least 2 lines (header + data)")
		}
		if !strings.Contains(lines[1], "-23.5") || !strings.Contains(lines[1], " - ") {
			t.Errorf("data line = %q", lines[1])
		}
	})

	t.Run("custom_headers", func(t *testing.T) {
		table := &MetricTable{Headers: []string{"A", "B", "C"}}
		table.AddMetricRow("Row", []float64{1, 2, 3}, 0, "", "")
		if output := table.String(); !strings.Contains(output, "C") || !strings.Contains(output, "3") {
			t.Errorf("output = %q", output)
		}
	})
}

func TestMetricTableAlignment(t *testing.T) {
	table := NewMetricTable()
	table.AddRow("Short", []string{"1", "2"}, "", "")
	table.AddRow("Much Longer Label", []string{"100", "200"}, "", "")

	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines (header + 2 data), got %d", len(lines))
	}
	if len(lines[1]) != len(lines[2]) {
		t.Errorf("rows not aligned:\n%q\n%q", lines[1], lines[2])
	}
}

func TestFormatMetricDB(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"normal_value", -50.0, 1, "-50.0"},
		{"digital_silence_inf", math.Inf(-1), 1, "< -120"},
		{"digital_silence_threshold", -120.0, 1, "< -120"},
		{"digital_silence_below", -150.0, 1, "< -120"},
		{"just_above_threshold", -119.9, 1, "-119.9"},
		{"nan", math.NaN(), 1, MissingValue},
		{"positive_inf", math.Inf(1), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricDB(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricDB(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricPeak(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"full_scale", 1.0, 1, "0.0"},
		{"half_scale", 0.5, 1, "-6.0"},
		{"low_level", 0.01, 1, "-40.0"},
		{"digital_silence_zero", 0.0, 1, "< -120"},
		{"digital_silence_negative", -0.001, 1, "< -120"},
		{"below_floor", 1e-7, 1, "< -120"},
		{"nan", math.NaN(), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricPeak(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricPeak(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}
