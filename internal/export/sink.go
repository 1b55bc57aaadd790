// Package export renders exam reports into tabular files. Layout code talks
// to a Sink so the same rows can become a workbook or delimited text.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

type Style int

const (
	StylePlain Style = iota
	StyleHeader
	StyleTitle
)

// Sink is a minimal multi-sheet table writer. Rows and columns are 1-based and
// cells go to the sheet most recently opened with NewSheet.
type Sink interface {
	NewSheet(name string) (string, error)
	WriteCell(row, col int, value any, style Style) error
	Write(w io.Writer) error
	ContentType() string
	Extension() string
}

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	"[", "", "]", "", ":", "", "*", "", "?", "", "/", "", "\\", "",
)

// SanitizeSheetName strips characters spreadsheets reject, bounds the length
// and makes the name unique (case-insensitively) against used.
func SanitizeSheetName(name string, used map[string]bool) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	base := truncateRunes(name, maxSheetName)
	candidate := base
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// XLSX writes an Excel workbook through excelize.
type XLSX struct {
	f       *excelize.File
	used    map[string]bool
	current string
	opened  bool
	styles  map[Style]int
}

func NewXLSX() (*XLSX, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2E8F0"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 13}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	return &XLSX{
		f:      f,
		used:   make(map[string]bool),
		styles: map[Style]int{StyleHeader: header, StyleTitle: title},
	}, nil
}

func (x *XLSX) NewSheet(name string) (string, error) {
	name = SanitizeSheetName(name, x.used)
	if !x.opened {
		if err := x.f.SetSheetName(x.f.GetSheetName(0), name); err != nil {
			return "", fmt.Errorf("rename sheet: %w", err)
		}
		x.opened = true
	} else if _, err := x.f.NewSheet(name); err != nil {
		return "", fmt.Errorf("create sheet %q: %w", name, err)
	}
	x.used[strings.ToLower(name)] = true
	x.current = name
	return name, nil
}

func (x *XLSX) WriteCell(row, col int, value any, style Style) error {
	if !x.opened {
		return fmt.Errorf("write cell: no sheet opened")
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if t, ok := value.(time.Time); ok {
		value = formatTime(t)
	}
	if err := x.f.SetCellValue(x.current, cell, value); err != nil {
		return fmt.Errorf("set cell %s!%s: %w", x.current, cell, err)
	}
	if id, ok := x.styles[style]; ok {
		if err := x.f.SetCellStyle(x.current, cell, cell, id); err != nil {
			return fmt.Errorf("style cell %s!%s: %w", x.current, cell, err)
		}
	}
	return nil
}

func (x *XLSX) Write(w io.Writer) error {
	defer func() { _ = x.f.Close() }()
	if err := x.f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (x *XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (x *XLSX) Extension() string { return "xlsx" }

// CSV writes every sheet as one section of a single file. With more than one
// sheet each section starts with a row holding the sheet name and sections
// are separated by a blank line.
type CSV struct {
	used   map[string]bool
	sheets []*csvSheet
}

type csvSheet struct {
	name string
	rows [][]string
}

func NewCSV() *CSV {
	return &CSV{used: make(map[string]bool)}
}

func (c *CSV) NewSheet(name string) (string, error) {
	name = SanitizeSheetName(name, c.used)
	c.used[strings.ToLower(name)] = true
	c.sheets = append(c.sheets, &csvSheet{name: name})
	return name, nil
}

func (c *CSV) WriteCell(row, col int, value any, _ Style) error {
	if len(c.sheets) == 0 {
		return fmt.Errorf("write cell: no sheet opened")
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("write cell: invalid coordinates %d,%d", row, col)
	}
	s := c.sheets[len(c.sheets)-1]
	for len(s.rows) < row {
		s.rows = append(s.rows, nil)
	}
	r := s.rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = formatValue(value)
	s.rows[row-1] = r
	return nil
}

func (c *CSV) Write(w io.Writer) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for i, s := range c.sheets {
		if len(c.sheets) > 1 {
			if i > 0 {
				if err := cw.Write([]string{}); err != nil {
					return err
				}
			}
			if err := cw.Write([]string{s.name}); err != nil {
				return err
			}
		}
		for _, r := range s.rows {
			if err := cw.Write(r); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (c *CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (c *CSV) Extension() string { return "csv" }

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return formatTime(x)
	}
	return fmt.Sprint(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
