package util

import "testing"

func TestLowestLevel(t *testing.T) {
	tests := []struct {
		name   string
		levels []int
		want   int
	}{
		{"all known", []int{90, 80, 100}, 80},
		{"sentinels skipped", []int{-1, 70, -1}, 70},
		{"all sentinel", []int{-1, -1, -1}, -1},
		{"empty", nil, -1},
		{"zero is valid", []int{0, 50}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LowestLevel(tt.levels...); got != tt.want {
				t.Errorf("LowestLevel(%v) = %d, want %d", tt.levels, got, tt.want)
			}
		})
	}
}
