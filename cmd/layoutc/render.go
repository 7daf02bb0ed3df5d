package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/transcoder"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var tableHeaders = []string{"TYPE", "LAYOUT", "ALIGN", "SIZE", "STRIDE"}

// traitsRows describes each named type. Types whose traits fail carry the
// error in the layout column.
func traitsRows(c *transcoder.Compiler, types map[string]layout.Layout, names []string) [][]string {
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		l := types[name]
		traits, err := c.Traits(l)
		if err != nil {
			rows = append(rows, []string{name, "error: " + err.Error(), "-", "-", "-"})
			continue
		}
		stride := "-"
		if traits.HasStride {
			stride = strconv.FormatUint(uint64(traits.Stride), 10)
		}
		rows = append(rows, []string{
			name,
			l.String(),
			strconv.FormatUint(uint64(traits.Align), 10),
			strconv.FormatUint(uint64(traits.Size), 10),
			stride,
		})
	}
	return rows
}

// traitsTable renders the rows as a bordered table, or as aligned plain
// text when styled is false.
func traitsTable(c *transcoder.Compiler, types map[string]layout.Layout, names []string, styled bool) string {
	rows := traitsRows(c, types, names)
	if !styled {
		return plainTable(tableHeaders, rows)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(tableHeaders...).
		Rows(rows...).
		Render()
}

func plainTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(cells)-1 {
				b.WriteString(cell)
				continue
			}
			fmt.Fprintf(&b, "%-*s", widths[i], cell)
		}
		b.WriteByte('\n')
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func hexDump(data []byte) string {
	return hex.Dump(data)
}

// shapeValue adapts a decoded JSON value to l. JSON has no variant
// notation, so variants are written as {"tag": ..., "value": ...}.
func shapeValue(l layout.Layout, v any) any {
	switch node := l.(type) {
	case *layout.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(obj))
		for k, mv := range obj {
			out[k] = mv
		}
		for _, m := range node.AllMembers() {
			if mv, ok := obj[m.Name]; ok {
				out[m.Name] = shapeValue(m.Layout, mv)
			}
		}
		return out
	case *layout.Vector:
		return shapeElements(node.Element, v)
	case *layout.Array:
		return shapeElements(node.Element, v)
	case *layout.Optional:
		if v == nil {
			return nil
		}
		return shapeValue(node.Element, v)
	case *layout.Variant:
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		tag, _ := obj["tag"].(string)
		for _, alt := range node.Alternatives {
			if alt.Tag == tag {
				payload, _ := obj["value"].(map[string]any)
				if payload == nil {
					payload = map[string]any{}
				}
				return transcoder.VariantValue{Tag: tag, Value: shapeValue(alt, payload)}
			}
		}
		return transcoder.VariantValue{Tag: tag, Value: obj["value"]}
	}
	return v
}

func shapeElements(elem layout.Layout, v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = shapeValue(elem, item)
	}
	return out
}
