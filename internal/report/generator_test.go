package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"report-service/internal/analysis"
	"report-service/internal/document"
)

var fixtureDevices = []string{"Press MO 1", "Charger PzS 12V", "Spare unit", "Pump BG 2"}

// fixture builds an hourly meter export covering the given number of days.
// "Spare unit" never consumes anything and "Press MO 1" has one spike.
func fixture(t *testing.T, hours int) []byte {
	t.Helper()
	header := []interface{}{"Дата", "Время"}
	for _, d := range fixtureDevices {
		header = append(header, d)
	}
	rows := [][]interface{}{{"Meter export"}, header}
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		press := 10 + float64(i%24)/2 + float64(i%2)
		if i == 40 {
			press = 90
		}
		rows = append(rows, []interface{}{
			ts.Format("02.01.2006"), ts.Format("15:04"),
			press, float64(i % 3), 0, 5 + float64(i%5),
		})
	}
	return workbook(t, rows)
}

// workbook writes rows to Sheet1 starting at A1.
func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := r
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}
	return buf.Bytes()
}

func template(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	data, err := document.NewTemplate(paragraphs...)
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	return data
}

func open(t *testing.T, data []byte) *document.Template {
	t.Helper()
	doc, err := document.Open(data)
	if err != nil {
		t.Fatalf("rendered report does not open: %v", err)
	}
	return doc
}

func TestGenerate_DefaultTemplate(t *testing.T) {
	out, err := Generate(context.Background(), fixture(t, 72), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	doc := open(t, out)
	text := doc.Text()
	for _, want := range []string{
		"Electricity consumption report for 01.04.2025 to 03.04.2025",
		"Period: 01.04.2025 to 03.04.2025",
		"Largest consumers",
		"Equipment categories",
		"Typical day",
		"Data completeness",
		"Consumption anomalies",
		"Device states",
		"Underutilization",
		"Conclusions",
		"Figure 1. Daily consumption of all devices.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report is missing %q", want)
		}
	}
	if strings.Contains(text, "{{") {
		t.Error("report still contains placeholders")
	}
	if len(doc.Media()) == 0 {
		t.Error("report has no charts")
	}
	if doc.Tables() == 0 {
		t.Error("report has no tables")
	}
}

func TestGenerate_SectionOrderAndNumbering(t *testing.T) {
	out, err := Generate(context.Background(), fixture(t, 72), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	text := open(t, out).Text()
	order := []string{"Daily consumption\n", "Largest consumers", "Equipment categories", "Typical day",
		"Data completeness", "Consumption anomalies", "Device states", "Underutilization\n", "Conclusions"}
	last := -1
	for _, h := range order {
		i := strings.Index(text, h)
		if i < last {
			t.Errorf("section %q out of order", h)
		}
		last = i
	}
	figures := strings.Count(text, "Figure ")
	for n := 1; n <= figures; n++ {
		if !strings.Contains(text, fmt.Sprintf("Figure %d. ", n)) {
			t.Errorf("figure %d missing from a sequence of %d", n, figures)
		}
	}
}

func TestGenerate_Placeholders(t *testing.T) {
	excel := fixture(t, 48)

	t.Run("title only", func(t *testing.T) {
		out, err := Generate(context.Background(), excel, template(t, "{{report_title}}", "Peak at {{peak_hour}}:00"), DefaultOptions())
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		doc := open(t, out)
		if len(doc.Media()) != 0 {
			t.Errorf("sections rendered without a placeholder: %v", doc.Media())
		}
		if !strings.Contains(doc.Text(), "Peak at ") {
			t.Error("scalar placeholder not rendered")
		}
	})

	t.Run("single section", func(t *testing.T) {
		out, err := Generate(context.Background(), excel, template(t, "{{report_title}}", "{{conclusions}}"), DefaultOptions())
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		text := open(t, out).Text()
		if !strings.Contains(text, "Largest consumers: Press MO 1") {
			t.Errorf("conclusions missing:\n%s", text)
		}
		if strings.Contains(text, "Figure") {
			t.Error("unplaced sections leaked into the report")
		}
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := Generate(context.Background(), excel, template(t, "{{report_body}}"), DefaultOptions())
		if !errors.Is(err, ErrRender) {
			t.Errorf("error = %v, want ErrRender", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Generate(context.Background(), excel, template(t, "{{report_title}", "x"), DefaultOptions())
		if !errors.Is(err, analysis.ErrDataFormat) {
			t.Errorf("error = %v, want ErrDataFormat", err)
		}
	})

	t.Run("not a document", func(t *testing.T) {
		_, err := Generate(context.Background(), excel, []byte("plain"), DefaultOptions())
		if !errors.Is(err, ErrRender) {
			t.Errorf("error = %v, want ErrRender", err)
		}
	})
}

func TestGenerate_InputErrors(t *testing.T) {
	tests := []struct {
		name  string
		excel []byte
		want  error
	}{
		{"not a workbook", []byte("not xlsx"), analysis.ErrSourceRead},
		{"single sample", fixture(t, 1), analysis.ErrInsufficientData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(context.Background(), tt.excel, nil, DefaultOptions())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Generate(ctx, fixture(t, 48), nil, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	table, err := analysis.Load(fixture(t, 72), analysis.DefaultLoadOptions())
	if err != nil {
		t.Fatal(err)
	}
	first, err := Analyze(context.Background(), table, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Analyze(context.Background(), table, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	// %v prints NaN consistently where reflect.DeepEqual would not match it
	for name, pair := range map[string][2]interface{}{
		"states":    {first.States, second.States},
		"off time":  {first.OffTime, second.OffTime},
		"anomalies": {first.Anomalies, second.Anomalies},
		"underutil": {first.Underutil, second.Underutil},
		"daily":     {first.Agg.Daily.Values, second.Agg.Daily.Values},
	} {
		if a, b := fmt.Sprintf("%+v", pair[0]), fmt.Sprintf("%+v", pair[1]); a != b {
			t.Errorf("%s differ between runs", name)
		}
	}

	spare := -1
	for i, s := range first.States {
		if s.Device == "Spare unit" {
			spare = i
		}
	}
	if spare < 0 || first.States[spare].OffPercent != 100 {
		t.Errorf("all-zero device not fully off: %+v", first.States)
	}
	if first.OffTime[0].Device != "Spare unit" {
		t.Errorf("longest off = %s, want Spare unit", first.OffTime[0].Device)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		ok     bool
	}{
		{"defaults", func(*Options) {}, true},
		{"quantile too high", func(o *Options) { o.QActive = 1 }, false},
		{"window too small", func(o *Options) { o.AnomalyWindow = 1 }, false},
		{"zero sigma", func(o *Options) { o.AnomalySigma = 0 }, false},
		{"zero top", func(o *Options) { o.TopN = 0 }, false},
		{"no methods", func(o *Options) { o.UnderutilMethods = nil }, false},
		{"best not configured", func(o *Options) {
			o.UnderutilMethods = []analysis.Method{analysis.DefaultMethod(analysis.MethodKMeans)}
		}, false},
		{"kmeans as best", func(o *Options) {
			o.UnderutilMethods = []analysis.Method{analysis.DefaultMethod(analysis.MethodKMeans)}
			o.BestMethod = analysis.MethodKMeans
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			if err := o.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestGenerate_KMeansBestSkipsThresholdCharts(t *testing.T) {
	opts := DefaultOptions()
	opts.BestMethod = analysis.MethodKMeans
	out, err := Generate(context.Background(), fixture(t, 72), nil, opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if strings.Contains(open(t, out).Text(), "Underutilization analysis for") {
		t.Error("threshold charts drawn for a method without a threshold")
	}
}

func TestGenerate_NoDevices(t *testing.T) {
	rows := [][]interface{}{{"Meter export"}, {"Дата", "Время"}}
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 48; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		rows = append(rows, []interface{}{ts.Format("02.01.2006"), ts.Format("15:04")})
	}

	out, err := Generate(context.Background(), workbook(t, rows), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	text := open(t, out).Text()
	if !strings.Contains(text, "Underutilization") {
		t.Error("underutilization section missing")
	}
	if strings.Contains(text, "Largest consumers:") {
		t.Error("consumer list written without devices")
	}
}

func TestGenerate_FlatSingleDay(t *testing.T) {
	rows := [][]interface{}{{"Meter export"}, {"Дата", "Время", "Press MO 1", "Pump BG 2"}}
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		rows = append(rows, []interface{}{ts.Format("02.01.2006"), ts.Format("15:04"), 12.5, 4})
	}

	out, err := Generate(context.Background(), workbook(t, rows), nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	text := open(t, out).Text()
	for _, absent := range []string{"Consumption anomalies", "Data completeness"} {
		if strings.Contains(text, absent) {
			t.Errorf("%q section written for a flat single day", absent)
		}
	}
	if !strings.Contains(text, "No significant consumption anomalies were found.") {
		t.Error("conclusions should state that no anomalies were found")
	}
}
