package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/xuri/excelize/v2"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngImage(t *testing.T, page, index int) extraction.Image {
	return extraction.Image{
		Page:     page,
		Index:    index,
		Bytes:    pngBytes(t, 4, 3),
		Ext:      "png",
		Filename: extraction.EmbeddedImageName(page, index, "png"),
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected workbook to open, got %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestBuildWorkbook_OneSheetPerTable(t *testing.T) {
	var tables []extraction.Table
	for i := 0; i < 3; i++ {
		tables = append(tables, extraction.Table{
			Page: i + 1,
			Rows: [][]string{{"Item", "Qty"}, {fmt.Sprintf("widget-%d", i), "4"}},
		})
	}

	data, warnings, err := BuildWorkbook(tables, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}

	f := openWorkbook(t, data)
	sheets := f.GetSheetList()
	want := []string{"Table_1", "Table_2", "Table_3"}
	if len(sheets) != len(want) {
		t.Fatalf("expected sheets %v, got %v", want, sheets)
	}
	for i, name := range want {
		if sheets[i] != name {
			t.Errorf("sheet[%d]: expected %q, got %q", i, name, sheets[i])
		}
	}

	header, _ := f.GetCellValue("Table_2", "A1")
	if header != "Item" {
		t.Errorf("expected header %q, got %q", "Item", header)
	}
	cell, _ := f.GetCellValue("Table_2", "A2")
	if cell != "widget-1" {
		t.Errorf("expected %q, got %q", "widget-1", cell)
	}
	qty, _ := f.GetCellValue("Table_3", "B2")
	if qty != "4" {
		t.Errorf("expected %q, got %q", "4", qty)
	}
}

func TestBuildWorkbook_PlaceholderWhenNoTables(t *testing.T) {
	data, _, err := BuildWorkbook(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := openWorkbook(t, data)

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != PlaceholderSheet {
		t.Fatalf("expected only %q, got %v", PlaceholderSheet, sheets)
	}
	header, _ := f.GetCellValue(PlaceholderSheet, "A1")
	msg, _ := f.GetCellValue(PlaceholderSheet, "A2")
	if header != "Message" || msg != "No tables found in PDF" {
		t.Errorf("unexpected placeholder content %q / %q", header, msg)
	}
}

func TestBuildWorkbook_ImagesSheet(t *testing.T) {
	images := []extraction.Image{pngImage(t, 1, 0), pngImage(t, 2, 3)}
	data, warnings, err := BuildWorkbook(nil, images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}

	f := openWorkbook(t, data)
	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[1] != ImagesSheet {
		t.Fatalf("expected placeholder plus %q, got %v", ImagesSheet, sheets)
	}

	tests := []struct {
		cell string
		want string
	}{
		{"E1", "Page 1, Image 1"},
		{"E2", "image_page1_0.png"},
		{"E21", "Page 2, Image 4"},
		{"E22", "image_page2_3.png"},
	}
	for _, tc := range tests {
		got, _ := f.GetCellValue(ImagesSheet, tc.cell)
		if got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.cell, tc.want, got)
		}
	}

	for _, cell := range []string{"A1", "A21"} {
		pics, err := f.GetPictures(ImagesSheet, cell)
		if err != nil {
			t.Fatalf("get pictures at %s: %v", cell, err)
		}
		if len(pics) != 1 {
			t.Errorf("expected 1 picture at %s, got %d", cell, len(pics))
		}
	}
}

func TestBuildWorkbook_BadImageDoesNotStopOthers(t *testing.T) {
	broken := extraction.Image{Page: 1, Index: 1, Bytes: []byte("not an image"), Ext: "png", Filename: "image_page1_1.png"}
	images := []extraction.Image{pngImage(t, 1, 0), broken, pngImage(t, 1, 2)}

	data, warnings, err := BuildWorkbook(nil, images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !strings.HasPrefix(warnings[0], "Could not add image image_page1_1.png to Excel:") {
		t.Errorf("unexpected warning %q", warnings[0])
	}

	f := openWorkbook(t, data)
	// The failed image does not consume a slot.
	got, _ := f.GetCellValue(ImagesSheet, "E22")
	if got != "image_page1_2.png" {
		t.Errorf("expected third image at row 21, got %q", got)
	}
	pics, err := f.GetPictures(ImagesSheet, "A21")
	if err != nil {
		t.Fatalf("get pictures: %v", err)
	}
	if len(pics) != 1 {
		t.Errorf("expected 1 picture at A21, got %d", len(pics))
	}
}

func TestBuildWorkbook_OpensWithEmptyImageList(t *testing.T) {
	tables := []extraction.Table{{Page: 1, Rows: [][]string{{"a"}}}}
	for _, images := range [][]extraction.Image{nil, {}} {
		data, _, err := BuildWorkbook(tables, images)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		f := openWorkbook(t, data)
		if idx, _ := f.GetSheetIndex(ImagesSheet); idx != -1 {
			t.Errorf("expected no %q sheet, got index %d", ImagesSheet, idx)
		}
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", float64(42)},
		{"-3.5", -3.5},
		{"0", float64(0)},
		{"0.25", 0.25},
		{"007", "007"},
		{"abc", "abc"},
		{"", ""},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
	}
	for _, tc := range tests {
		if got := cellValue(tc.in); got != tc.want {
			t.Errorf("cellValue(%q): expected %v (%T), got %v (%T)", tc.in, tc.want, tc.want, got, got)
		}
	}
}

func TestFitScale(t *testing.T) {
	tests := []struct {
		w, h   int
		sx, sy float64
	}{
		{100, 100, 1, 1},
		{800, 300, 0.5, 1},
		{400, 600, 1, 0.5},
		{1600, 1200, 0.25, 0.25},
	}
	for _, tc := range tests {
		sx, sy := fitScale(tc.w, tc.h)
		if sx != tc.sx || sy != tc.sy {
			t.Errorf("fitScale(%d, %d): expected (%v, %v), got (%v, %v)", tc.w, tc.h, tc.sx, tc.sy, sx, sy)
		}
	}
}

func TestBuildArchive_RoundTrip(t *testing.T) {
	images := []extraction.Image{
		pngImage(t, 1, 0),
		{Page: 2, Index: 0, Bytes: []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01}, Ext: "jpg", Filename: "image_page2_0.jpg"},
		{Page: 3, Bytes: pngBytes(t, 2, 2), Ext: "png", Filename: "page_3.png"},
	}

	data, err := BuildArchive(images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != len(images) {
		t.Fatalf("expected %d entries, got %d", len(images), len(zr.File))
	}
	for i, zf := range zr.File {
		if zf.Name != images[i].Filename {
			t.Errorf("entry[%d]: expected name %q, got %q", i, images[i].Filename, zf.Name)
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", zf.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", zf.Name, err)
		}
		if !bytes.Equal(got, images[i].Bytes) {
			t.Errorf("entry %s: payload differs", zf.Name)
		}
	}
}

func TestBuildArchive_Empty(t *testing.T) {
	data, err := BuildArchive(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 0 {
		t.Errorf("expected 0 entries, got %d", len(zr.File))
	}
}

func TestBuildReport(t *testing.T) {
	tables := []extraction.Table{{Page: 2, Rows: [][]string{{"Region", "Sales"}, {"North", "12"}, {"South"}}}}
	images := []extraction.Image{
		pngImage(t, 1, 0),
		{Page: 1, Index: 1, Bytes: []byte("garbage"), Ext: "png", Filename: "image_page1_1.png"},
	}

	data, warnings, err := BuildReport("quarterly", tables, images)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "image_page1_1.png") {
		t.Errorf("expected one warning naming the broken image, got %v", warnings)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("expected docx to be a zip container, got %v", err)
	}
	var doc string
	for _, zf := range zr.File {
		if zf.Name != "word/document.xml" {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		doc = string(b)
	}
	if doc == "" {
		t.Fatal("expected word/document.xml in report")
	}
	for _, want := range []string{"quarterly", "Table 1 (page 2)", "Region", "North", "image_page1_0.png"} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected document to contain %q", want)
		}
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{WorkbookName("report.pdf"), "report_extracted.xlsx"},
		{ArchiveName("report.pdf"), "report_images.zip"},
		{ReportName("report.pdf"), "report_report.docx"},
		{WorkbookName("a.b.pdf"), "a.b_extracted.xlsx"},
		{WorkbookName("noext"), "noext_extracted.xlsx"},
		{WorkbookName(".pdf"), "document_extracted.xlsx"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, tc.got)
		}
	}
}

func TestASCIIName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report_extracted.xlsx", "report_extracted.xlsx"},
		{"Résumé_extracted.xlsx", "Resume_extracted.xlsx"},
		{"my report (final).zip", "my_report_final_.zip"},
		{"报告.zip", "download.zip"},
	}
	for _, tc := range tests {
		if got := ASCIIName(tc.in); got != tc.want {
			t.Errorf("ASCIIName(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestContentDisposition(t *testing.T) {
	got := ContentDisposition("Résumé_images.zip")
	if !strings.HasPrefix(got, `attachment; filename="Resume_images.zip"`) {
		t.Errorf("unexpected ascii fallback in %q", got)
	}
	if !strings.Contains(got, "filename*=UTF-8''R%C3%A9sum%C3%A9_images.zip") {
		t.Errorf("unexpected utf-8 name in %q", got)
	}
}

func TestContentDisposition_ExtValueEscaping(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a=b.zip", "a%3Db.zip"},
		{"me@host.zip", "me%40host.zip"},
		{"c:d.zip", "c%3Ad.zip"},
		{"two words.zip", "two%20words.zip"},
		{"50%;'x'.zip", "50%25%3B%27x%27.zip"},
		{"keep!#$&+-.^_`|~.zip", "keep!#$&+-.^_`|~.zip"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ContentDisposition(tc.name)
			_, ext, ok := strings.Cut(got, "filename*=UTF-8''")
			if !ok {
				t.Fatalf("expected filename* parameter in %q", got)
			}
			if ext != tc.want {
				t.Errorf("expected %q, got %q", tc.want, ext)
			}
		})
	}
}
