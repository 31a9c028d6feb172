package analysis

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// LoadOptions selects the sheet and the layout of the input workbook.
type LoadOptions struct {
	// Sheet is the worksheet name; empty selects the first sheet.
	Sheet string
	// HeaderSkip is the number of leading rows discarded before the header row.
	HeaderSkip int
	// DateColumns and TimeColumns are accepted header names, matched case-insensitively.
	DateColumns []string
	TimeColumns []string
}

// DefaultLoadOptions matches the meter export format: one title row, then the header.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		HeaderSkip:  1,
		DateColumns: []string{"Date", "Дата"},
		TimeColumns: []string{"Time", "Время"},
	}
}

var dateLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"2006/01/02",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
}

type row struct {
	ts     time.Time
	values []float64
}

// Load parses workbook bytes into a Table. Cells that are not numbers become NaN.
// Rows whose timestamp cannot be parsed are skipped and counted in Table.SkippedRows.
func Load(data []byte, opts LoadOptions) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", ErrSourceRead, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", ErrSourceRead, sheet, err)
	}
	if len(rows) <= opts.HeaderSkip {
		return nil, fmt.Errorf("%w: sheet %q has no header row", ErrDataFormat, sheet)
	}

	header := columnNames(rows[opts.HeaderSkip])
	dateIdx := findColumn(header, opts.DateColumns)
	timeIdx := findColumn(header, opts.TimeColumns)
	if dateIdx < 0 || timeIdx < 0 {
		return nil, fmt.Errorf("%w: sheet %q must have date %v and time %v columns",
			ErrDataFormat, sheet, opts.DateColumns, opts.TimeColumns)
	}

	var devices []string
	var deviceIdx []int
	for i, name := range header {
		if i == dateIdx || i == timeIdx {
			continue
		}
		devices = append(devices, name)
		deviceIdx = append(deviceIdx, i)
	}

	var parsed []row
	skipped := 0
	for _, cells := range rows[opts.HeaderSkip+1:] {
		ts, ok := parseTimestamp(cell(cells, dateIdx), cell(cells, timeIdx))
		if !ok {
			skipped++
			continue
		}
		values := make([]float64, len(deviceIdx))
		for d, ci := range deviceIdx {
			values[d] = parseNumber(cell(cells, ci))
		}
		parsed = append(parsed, row{ts: ts, values: values})
	}

	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].ts.Before(parsed[j].ts) })

	t := &Table{Devices: devices, Values: make([][]float64, len(devices)), SkippedRows: skipped}
	for _, r := range parsed {
		if n := len(t.Timestamps); n > 0 && r.ts.Equal(t.Timestamps[n-1]) {
			t.SkippedRows++
			continue
		}
		t.Timestamps = append(t.Timestamps, r.ts)
		for d, v := range r.values {
			t.Values[d] = append(t.Values[d], v)
		}
	}
	return t, nil
}

// columnNames trims header cells and disambiguates blanks and duplicates.
func columnNames(cells []string) []string {
	seen := make(map[string]int, len(cells))
	names := make([]string, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(c)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func findColumn(header []string, aliases []string) int {
	for i, name := range header {
		for _, a := range aliases {
			if strings.EqualFold(name, a) {
				return i
			}
		}
	}
	return -1
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

// parseNumber coerces a cell to float64; anything unparsable is missing.
func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// parseTimestamp combines a day-first date cell and a time cell. Both may be Excel serials.
func parseTimestamp(dateCell, timeCell string) (time.Time, bool) {
	day, ok := parseDate(dateCell)
	if !ok {
		return time.Time{}, false
	}
	tod, ok := parseTimeOfDay(timeCell)
	if !ok {
		return time.Time{}, false
	}
	return day.Add(tod), true
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return truncateDay(t), true
	}
	// "2025-04-01 00:00:00" style values carry a time part that the time column overrides.
	datePart := strings.Fields(s)[0]
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, datePart, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimeOfDay(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 0 {
			return 0, false
		}
		frac := serial - math.Floor(serial)
		return (time.Duration(frac * float64(24*time.Hour))).Round(time.Second), true
	}
	fields := strings.Fields(s)
	candidate := s
	if len(fields) == 2 && strings.Contains(fields[1], ":") && !strings.HasSuffix(s, "M") {
		candidate = fields[1]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
