package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// statusf prints a status message to stderr unless --quiet is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	t = t.Local()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// printItems renders rows as a table, one column per field. Fields missing
// from a row are left blank.
func printItems(w io.Writer, items []zumo.Item) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No rows.")
		return nil
	}

	columns := itemColumns(items)

	data := pterm.TableData{columns}
	for _, item := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatCell(item[col])
		}

		data = append(data, row)
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render()
}

// itemColumns returns the union of the items' field names, "id" first and
// the rest sorted.
func itemColumns(items []zumo.Item) []string {
	seen := make(map[string]bool)

	var cols []string

	for _, item := range items {
		for k := range item {
			if !seen[k] && k != "id" {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}

	slices.Sort(cols)

	for _, item := range items {
		if _, ok := item["id"]; ok {
			return append([]string{"id"}, cols...)
		}
	}

	return cols
}

// formatCell renders one JSON value for a table cell.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}

		return string(data)
	}
}
