package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

// sessionRow mirrors the shape of session listings the CLI renders.
type sessionRow struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	DeviceID string `json:"device_id" table:"wide"`
}

func TestTableFormatter_Format_Table(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "STATUS"},
		Rows: [][]string{
			{"cgss-01HX1", "active"},
			{"cgss-01HX2", "revoked"},
		},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "STATUS") {
		t.Error("missing header STATUS")
	}
	if !strings.Contains(out, "cgss-01HX1") {
		t.Error("missing row data")
	}
}

func TestTableFormatter_Format_TableValue(t *testing.T) {
	table := Table{
		Headers: []string{"ID"},
		Rows:    [][]string{{"cgss-01HX1"}},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "cgss-01HX1") {
		t.Error("missing data from Table value")
	}
}

func TestTableFormatter_Format_NoHeaders(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "STATUS"},
		Rows:    [][]string{{"cgss-01HX1", "active"}},
	}

	var buf bytes.Buffer
	f := &TableFormatter{NoHeaders: true}
	if err := f.Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "STATUS") {
		t.Error("headers printed despite NoHeaders")
	}
	if !strings.Contains(out, "cgss-01HX1") {
		t.Error("missing row data")
	}
}

func TestTableFormatter_Format_Nil(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, nil); err != nil {
		t.Fatalf("Format(nil) error = %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Format(nil) should produce no output")
	}
}

func TestTableFormatter_Format_Slice(t *testing.T) {
	data := []sessionRow{
		{ID: "cgss-01HX1", UserID: "cgus-alice", Status: "active", DeviceID: "laptop-a41"},
		{ID: "cgss-01HX2", UserID: "cgus-bob", Status: "revoked", DeviceID: "phone-b77"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ID") {
		t.Error("missing header")
	}
	if !strings.Contains(out, "cgss-01HX1") || !strings.Contains(out, "cgus-bob") {
		t.Error("missing row data")
	}
	// Wide-only columns stay hidden by default.
	if strings.Contains(out, "DEVICE_ID") {
		t.Error("wide-only column shown without Wide")
	}
}

func TestTableFormatter_Format_SliceWide(t *testing.T) {
	data := []sessionRow{
		{ID: "cgss-01HX1", UserID: "cgus-alice", Status: "active", DeviceID: "laptop-a41"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{Wide: true}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "DEVICE_ID") {
		t.Error("wide column missing with Wide=true")
	}
	if !strings.Contains(out, "laptop-a41") {
		t.Error("wide column data missing")
	}
}

func TestTableFormatter_Format_EmptySlice(t *testing.T) {
	var data []sessionRow

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(buf.String(), "ID") {
		t.Error("headers printed for empty slice")
	}
}

func TestTableFormatter_Format_Map(t *testing.T) {
	data := map[string]any{
		"backend":  "memory",
		"sessions": 42,
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "KEY") || !strings.Contains(out, "VALUE") {
		t.Error("missing map headers")
	}
}

func TestTableFormatter_Format_SingleStruct(t *testing.T) {
	data := struct {
		Version string `json:"version"`
		Uptime  int    `json:"uptime"`
	}{Version: "1.4.0", Uptime: 3600}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "FIELD") || !strings.Contains(out, "VALUE") {
		t.Error("missing struct headers")
	}
	if !strings.Contains(out, "1.4.0") || !strings.Contains(out, "3600") {
		t.Error("missing struct data")
	}
}

func TestTableFormatter_Format_PointerSlice(t *testing.T) {
	data := []*sessionRow{
		{ID: "cgss-01HX1", Status: "active"},
		{ID: "cgss-01HX2", Status: "expired"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "cgss-01HX1") || !strings.Contains(out, "cgss-01HX2") {
		t.Error("missing pointer slice data")
	}
}

func TestTable_Render(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "ROLE"},
		Rows: [][]string{
			{"cgus-alice", "admin"},
			{"cgus-bob", "user"},
		},
	}

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("Render() lines = %d, want 3", len(lines))
	}
}

func TestTable_RenderWithOptions_NoRows(t *testing.T) {
	table := &Table{
		Headers: []string{"ID", "ROLE"},
		Rows:    [][]string{},
	}

	var buf bytes.Buffer
	if err := table.RenderWithOptions(&buf, false); err != nil {
		t.Fatalf("RenderWithOptions() error = %v", err)
	}
	if !strings.Contains(buf.String(), "ID") {
		t.Error("headers missing for empty table")
	}
}

func TestTable_AddRow(t *testing.T) {
	table := &Table{}
	table.AddRow("cgss-01HX1", "cgus-alice", "active")

	if len(table.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(table.Rows))
	}
	if len(table.Rows[0]) != 3 {
		t.Errorf("cols = %d, want 3", len(table.Rows[0]))
	}
}

func TestTable_SetHeaders(t *testing.T) {
	table := &Table{}
	table.SetHeaders("ID", "USER", "STATUS")

	if len(table.Headers) != 3 {
		t.Errorf("headers = %d, want 3", len(table.Headers))
	}
	if table.Headers[0] != "ID" {
		t.Errorf("first header = %s, want ID", table.Headers[0])
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
	}{
		{"string", "admin", "admin"},
		{"empty string", "", "-"},
		{"int", 42, "42"},
		{"int64", int64(123), "123"},
		{"uint", uint(99), "99"},
		{"float64", 3.14159, "3.14"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty slice", []int{}, "-"},
		{"slice", []int{1, 2, 3}, "[3 items]"},
		{"empty map", map[string]int{}, "-"},
		{"map", map[string]int{"a": 1}, "{1 keys}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(reflect.ValueOf(tc.input)); got != tc.want {
				t.Errorf("formatValue(%v) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestFormatValue_Time(t *testing.T) {
	tm := time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC)
	if got := formatValue(reflect.ValueOf(tm)); got != "2026-08-15 14:30" {
		t.Errorf("formatValue(time) = %q, want 2026-08-15 14:30", got)
	}

	var zero time.Time
	if got := formatValue(reflect.ValueOf(zero)); got != "-" {
		t.Errorf("formatValue(zero time) = %q, want -", got)
	}
}

func TestFormatValue_Pointer(t *testing.T) {
	val := "cgus-alice"
	if got := formatValue(reflect.ValueOf(&val)); got != "cgus-alice" {
		t.Errorf("formatValue(*string) = %q, want cgus-alice", got)
	}

	var nilPtr *string
	if got := formatValue(reflect.ValueOf(nilPtr)); got != "" {
		t.Errorf("formatValue(nil ptr) = %q, want empty", got)
	}
}

func TestFormatValue_Interface(t *testing.T) {
	var iface any = "wrapped"
	if got := formatValue(reflect.ValueOf(&iface).Elem()); got != "wrapped" {
		t.Errorf("formatValue(interface) = %q, want wrapped", got)
	}

	var nilIface any
	if got := formatValue(reflect.ValueOf(&nilIface).Elem()); got != "" {
		t.Errorf("formatValue(nil interface) = %q, want empty", got)
	}
}

func TestFormatValue_Invalid(t *testing.T) {
	var invalid reflect.Value
	if got := formatValue(invalid); got != "" {
		t.Errorf("formatValue(invalid) = %q, want empty", got)
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Name", "Name"},
		{"UserName", "User_Name"},
		{"HTTPServer", "H_T_T_P_Server"},
		{"already_snake", "already_snake"},
	}

	for _, tc := range cases {
		if got := toSnakeCase(tc.input); got != tc.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

type redactedRow struct {
	Username string `json:"username"`
	Hash     string `json:"-"`                  // json visibility does not drive the table
	Internal string `json:"internal" table:"-"` // table:"-" hides a column
}

func TestTableFormatter_Format_SkipFields(t *testing.T) {
	data := []redactedRow{
		{Username: "admin", Hash: "cgth_abc", Internal: "hidden"},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "INTERNAL") {
		t.Error("table:\"-\" column should be hidden")
	}
	if !strings.Contains(out, "admin") {
		t.Error("missing visible data")
	}
	if !strings.Contains(out, "HASH") {
		t.Error("json:\"-\" should not hide a table column")
	}
}

type mixedExportRow struct {
	Public  string
	private string //nolint:unused
}

func TestTableFormatter_Format_UnexportedFields(t *testing.T) {
	data := []mixedExportRow{{Public: "visible"}}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "PUBLIC") {
		t.Error("missing public field")
	}
	if strings.Contains(out, "private") {
		t.Error("unexported field leaked into output")
	}
}

func TestTableFormatter_Format_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	// Channels cannot be tabularized; an error is acceptable, a panic
	// is not.
	if err := f.Format(&buf, make(chan int)); err != nil {
		t.Logf("Format(chan) error = %v", err)
	}
}

func TestTableFormatter_Format_NestedTypes(t *testing.T) {
	data := []struct {
		Scopes []string       `json:"scopes"`
		Labels map[string]int `json:"labels"`
	}{
		{Scopes: []string{"read", "write"}, Labels: map[string]int{"env": 1}},
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[2 items]") {
		t.Error("slice column should show item count")
	}
	if !strings.Contains(out, "{1 keys}") {
		t.Error("map column should show key count")
	}
}
