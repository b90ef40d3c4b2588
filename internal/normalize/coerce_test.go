package normalize

import "testing"

func TestNormalizePeriod(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // "" means nil expected
	}{
		{"valid 6-digit", "202312", "202312"},
		{"valid 6-digit with spaces", " 202312 ", "202312"},
		{"valid 6-digit january", "202401", "202401"},
		{"valid 6-digit december", "199912", "199912"},
		{"month 13 rejected", "202313", ""},
		{"month 00 rejected", "202300", ""},
		{"pre-1900 year rejected", "189912", ""},
		{"8-digit date truncated", "20231215", "202312"},
		{"8-digit invalid day rejected", "20231200", ""},
		{"8-digit invalid month rejected", "20231315", ""},
		{"range takes leading period", "202401-202403", "202401"},
		{"range with invalid start", "202413-202415", ""},
		{"letters mixed with digits", "abc123", ""},
		{"free text", "first half 2023", ""},
		{"empty string", "", ""},
		{"7 digits", "2023121", ""},
		{"separators stripped", "2023-12", "202312"},
		{"period with slash", "2023/12", "202312"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePeriod(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Errorf("NormalizePeriod(%q) = %q, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("NormalizePeriod(%q) = nil, want %q", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("NormalizePeriod(%q) = %q, want %q", tt.in, *got, tt.want)
			}
		})
	}
}

func TestNumOrNull(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
		null bool
	}{
		{"plain number", "1234.56", 1234.56, false},
		{"currency and thousands", "$1,234.56", 1234.56, false},
		{"negative", "-42.5", -42.5, false},
		{"integer", "100", 100, false},
		{"empty", "", 0, true},
		{"whitespace", "   ", 0, true},
		{"letters", "abc", 0, true},
		{"currency only", "$", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NumOrNull(tt.in)
			if tt.null {
				if got != nil {
					t.Errorf("NumOrNull(%q) = %v, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("NumOrNull(%q) = nil, want %v", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("NumOrNull(%q) = %v, want %v", tt.in, *got, tt.want)
			}
		})
	}
}

func TestIntOrNull(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
		null bool
	}{
		{"plain", "42", 42, false},
		{"thousands separator", "1,000", 1000, false},
		{"negative", "-7", -7, false},
		{"trailing unit", "120 plays", 120, false},
		{"empty", "", 0, true},
		{"letters only", "n/a", 0, true},
		{"lone hyphen", "-", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntOrNull(tt.in)
			if tt.null {
				if got != nil {
					t.Errorf("IntOrNull(%q) = %v, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("IntOrNull(%q) = nil, want %v", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("IntOrNull(%q) = %v, want %v", tt.in, *got, tt.want)
			}
		})
	}
}

func TestValueOrNull(t *testing.T) {
	if got := ValueOrNull("  hello "); got == nil || *got != "hello" {
		t.Errorf("ValueOrNull trimmed value mismatch: %v", got)
	}
	if got := ValueOrNull("   "); got != nil {
		t.Errorf("ValueOrNull(whitespace) = %q, want nil", *got)
	}
	if got := ValueOrNull(""); got != nil {
		t.Errorf("ValueOrNull(empty) = %q, want nil", *got)
	}
}
