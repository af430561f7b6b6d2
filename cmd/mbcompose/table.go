package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tturner/mbcompose/internal/compose"
	"github.com/tturner/mbcompose/internal/logging"
	"github.com/tturner/mbcompose/internal/modbus"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// renderTable writes a bordered table. Rows whose last cell starts with
// "exception" or "error" are highlighted.
func renderTable(w io.Writer, title string, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#414868"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(rowStyles(rows))
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	fmt.Fprintln(w, t.Render())
}

// rowStyles picks a style per table row. lipgloss numbers the header row 0
// and data rows from 1.
func rowStyles(rows [][]string) table.StyleFunc {
	return func(row, col int) lipgloss.Style {
		if row == 0 {
			return headerStyle
		}
		if row <= len(rows) && isFailure(rows[row-1]) {
			return errorStyle
		}
		return cellStyle
	}
}

func isFailure(row []string) bool {
	if len(row) == 0 {
		return false
	}
	last := row[len(row)-1]
	return strings.HasPrefix(last, "exception") || strings.HasPrefix(last, "error")
}

// requestRow summarises one composed request.
func requestRow(target compose.Target, req modbus.Request, addresses int) []string {
	return []string{
		target.String(),
		req.Function().String(),
		fmt.Sprintf("%d", modbus.RequestStart(req)),
		fmt.Sprintf("%d", modbus.RequestQuantity(req)),
		fmt.Sprintf("%d", addresses),
		logging.FormatHex(req.Bytes()),
	}
}

var requestHeaders = []string{"Target", "Function", "Start", "Qty", "Addresses", "Frame"}

// valueRows lists a read result's values in wire order.
func valueRows(req compose.ReadRequest, res compose.ReadResult) [][]string {
	if exc, ok := res.Exception(); ok {
		return [][]string{{req.Target.String(), "-", "-", fmt.Sprintf("exception: %s", exc.Code)}}
	}
	rows := make([][]string, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		v, ok := res.Values[a.Name()]
		value := fmt.Sprintf("%v", v)
		if !ok {
			value = "error: not extracted"
		}
		rows = append(rows, []string{req.Target.String(), a.Name(), fmt.Sprintf("%d", a.Address()), value})
	}
	return rows
}

var valueHeaders = []string{"Target", "Name", "Address", "Value"}
