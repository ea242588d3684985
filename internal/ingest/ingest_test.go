package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func readJSON(t *testing.T, path string) interface{} {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("normalized output is not JSON: %v", err)
	}
	return v
}

func TestIngest_JSONRoundTrip(t *testing.T) {
	in := NewIngestor(t.TempDir())

	path, err := in.Ingest("patient.json", strings.NewReader(`{"patient":"Jane Doe"}`))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if filepath.Base(path) != "patient_processed.json" {
		t.Errorf("normalized path = %s", path)
	}
	want := map[string]interface{}{"patient": "Jane Doe"}
	if got := readJSON(t, path); !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestNormalize_SemanticEquality(t *testing.T) {
	cases := []string{
		`{"a":1,"b":[true,false,null],"c":{"d":"e"}}`,
		`[1, 2.50, -3e10, 12345678901234567890]`,
		`"just a string"`,
		`{"name":"José Müller","note":"<b>BP</b> 120/80 & stable"}`,
		`{}`,
	}
	for _, src := range cases {
		in := NewIngestor(t.TempDir())
		saved, err := in.Save("doc.json", strings.NewReader(src))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		out, err := in.Normalize(saved)
		if err != nil {
			t.Fatalf("Normalize(%s) error = %v", src, err)
		}
		var want interface{}
		if err := json.Unmarshal([]byte(src), &want); err != nil {
			t.Fatal(err)
		}
		if got := readJSON(t, out); !reflect.DeepEqual(got, want) {
			t.Errorf("Normalize(%s) = %v, want %v", src, got, want)
		}
	}
}

func TestNormalize_PreservesTextAndIndents(t *testing.T) {
	in := NewIngestor(t.TempDir())
	saved, err := in.Save("p.json", strings.NewReader(`{"name":"Zoë","big":12345678901234567890,"html":"<br>"}`))
	if err != nil {
		t.Fatal(err)
	}
	out, err := in.Normalize(saved)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(out)
	text := string(raw)
	for _, want := range []string{`"Zoë"`, `12345678901234567890`, `"<br>"`, "\n    \"big\""} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	in := NewIngestor(t.TempDir())
	saved, err := in.Save("p.json", strings.NewReader(`{"z":1,"a":{"y":2,"b":3}}`))
	if err != nil {
		t.Fatal(err)
	}
	first, err := in.Normalize(saved)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(first)
	second, err := in.Normalize(saved)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Errorf("outputs differ:\n%s\n%s", a, b)
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	in := NewIngestor(t.TempDir())
	saved, err := in.Save("bad.json", strings.NewReader(`{"patient": `))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.Normalize(saved); err == nil {
		t.Fatal("expected decoding error")
	}
	if _, err := os.Stat(NormalizedPath(saved)); !os.IsNotExist(err) {
		t.Errorf("normalized file should not exist, stat err = %v", err)
	}
}

func TestNormalize_TrailingData(t *testing.T) {
	in := NewIngestor(t.TempDir())
	saved, err := in.Save("two.json", strings.NewReader(`{"a":1} {"b":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.Normalize(saved); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("Normalize() error = %v, want ErrTrailingData", err)
	}
}

func TestSave_OverwritesSameName(t *testing.T) {
	dir := t.TempDir()
	in := NewIngestor(dir)
	if _, err := in.Save("p.json", strings.NewReader(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	path, err := in.Save("p.json", strings.NewReader(`{"v":2}`))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != `{"v":2}` {
		t.Errorf("file content = %s, want second upload", raw)
	}
}

func TestSave_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	in := NewIngestor(dir)
	path, err := in.Save("../../etc/p.json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "p.json") {
		t.Errorf("path = %s, want inside %s", path, dir)
	}
	if _, err := in.Save("", strings.NewReader(`{}`)); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestIngest_RejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	in := NewIngestor(dir)
	if _, err := in.Ingest("p.json", strings.NewReader("{\"name\":\"Jos\xe9\"}")); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("Ingest() error = %v, want ErrInvalidUTF8", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "p_processed.json")); !os.IsNotExist(err) {
		t.Errorf("normalized file should not exist, stat err = %v", err)
	}
}

func TestIngest_TabularExtensionsDecodeAsJSON(t *testing.T) {
	dir := t.TempDir()
	in := NewIngestor(dir)

	path, err := in.Ingest("p.csv", strings.NewReader(`{"patient":"Jane Doe"}`))
	if err != nil {
		t.Fatalf("Ingest(json in .csv) error = %v", err)
	}
	want := map[string]interface{}{"patient": "Jane Doe"}
	if got := readJSON(t, path); !reflect.DeepEqual(got, want) {
		t.Errorf("normalized = %v, want %v", got, want)
	}

	if _, err := in.Ingest("rows.csv", strings.NewReader("name,dob\nSmith,1985-02-01\n")); err == nil {
		t.Fatal("Ingest(csv rows) error = nil, want decoding error")
	}
	if _, err := os.Stat(filepath.Join(dir, "rows_processed.json")); !os.IsNotExist(err) {
		t.Errorf("normalized file should not exist, stat err = %v", err)
	}
}

func TestNormalize_CSVInvalidUTF8(t *testing.T) {
	in := NewIngestor(t.TempDir())
	in.Tabular = true
	saved, err := in.Save("v.csv", strings.NewReader("name\nJos\xe9\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.Normalize(saved); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("Normalize() error = %v, want ErrInvalidUTF8", err)
	}
}

func TestNormalize_CSV(t *testing.T) {
	in := NewIngestor(t.TempDir())
	in.Tabular = true
	csvText := "\ufeffname,systolic,diastolic\nJane Doe,150,95\n,,\nJane Doe,118\n"
	saved, err := in.Save("vitals.csv", strings.NewReader(csvText))
	if err != nil {
		t.Fatal(err)
	}
	out, err := in.Normalize(saved)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if filepath.Base(out) != "vitals_processed.json" {
		t.Errorf("path = %s", out)
	}
	want := map[string]interface{}{
		"source": "vitals.csv",
		"rows": []interface{}{
			map[string]interface{}{"name": "Jane Doe", "systolic": "150", "diastolic": "95"},
			map[string]interface{}{"name": "Jane Doe", "systolic": "118", "diastolic": ""},
		},
	}
	if got := readJSON(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("csv = %v, want %v", got, want)
	}
}

func TestNormalize_XLSX(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "labs.xlsx")

	f := excelize.NewFile()
	cells := map[string]string{"A1": "lab", "B1": "result", "A2": "A1C", "B2": "7.9", "C2": "abnormal"}
	for cell, v := range cells {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	in := NewIngestor(dir)
	in.Tabular = true
	out, err := in.Normalize(src)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := map[string]interface{}{
		"source": "labs.xlsx",
		"sheets": map[string]interface{}{
			"Sheet1": []interface{}{
				map[string]interface{}{"lab": "A1C", "result": "7.9", "column_3": "abnormal"},
			},
		},
	}
	if got := readJSON(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("xlsx = %v, want %v", got, want)
	}
}

func TestRowsToRecords_Empty(t *testing.T) {
	if got := rowsToRecords(nil); got == nil || len(got) != 0 {
		t.Errorf("rowsToRecords(nil) = %#v, want empty non-nil slice", got)
	}
}
