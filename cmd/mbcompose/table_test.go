package main

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestRowStyles(t *testing.T) {
	rows := [][]string{
		{"tcp://plc||unitId=1", "level", "0", "42"},
		{"tcp://plc||unitId=1", "-", "-", "exception: Illegal_Data_Address"},
		{"tcp://plc||unitId=1", "flow", "2", "7"},
	}
	style := rowStyles(rows)

	tests := []struct {
		name string
		row  int
		want lipgloss.Style
	}{
		{"header", 0, headerStyle},
		{"first data row", 1, cellStyle},
		{"failing row", 2, errorStyle},
		{"row after failure", 3, cellStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := style(tt.row, 0)
			if got.GetBold() != tt.want.GetBold() || got.GetForeground() != tt.want.GetForeground() {
				t.Errorf("row %d: got bold=%v fg=%v, want bold=%v fg=%v", tt.row,
					got.GetBold(), got.GetForeground(), tt.want.GetBold(), tt.want.GetForeground())
			}
		})
	}
}
