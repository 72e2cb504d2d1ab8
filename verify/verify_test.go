package verify

import (
	"errors"
	"testing"
	"time"
)

func TestFileWithoutSignature(t *testing.T) {
	// Minimal single-page document with a cross-reference table and no
	// AcroForm. Offsets below match the body exactly.
	unsigned := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >>\nendobj\n" +
		"xref\n0 4\n" +
		"0000000000 65535 f\r\n" +
		"0000000009 00000 n\r\n" +
		"0000000058 00000 n\r\n" +
		"0000000115 00000 n\r\n" +
		"trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n186\n%%EOF\n")

	_, err := File(unsigned)
	if !errors.Is(err, ErrNoSignature) {
		t.Errorf("got %v, want ErrNoSignature", err)
	}
}

func TestFileRejectsGarbage(t *testing.T) {
	for _, input := range [][]byte{nil, []byte(""), []byte("not a pdf at all")} {
		if _, err := File(input); err == nil {
			t.Errorf("input %q: expected an error", input)
		}
	}
}

func TestCoversWholeDocument(t *testing.T) {
	cases := []struct {
		name   string
		ranges [][2]int64
		size   int64
		want   bool
	}{
		{"standard two ranges", [][2]int64{{0, 100}, {300, 700}}, 1000, true},
		{"gap before second range", [][2]int64{{0, 100}, {300, 600}}, 1000, false},
		{"does not start at zero", [][2]int64{{10, 90}, {300, 700}}, 1000, false},
		{"no ranges", nil, 1000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := coversWholeDocument(tc.ranges, tc.size); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParsePDFDate(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "D:20240517093012+00'00'", want: time.Date(2024, 5, 17, 9, 30, 12, 0, time.UTC)},
		{in: "D:20240517063012-03'00'", want: time.Date(2024, 5, 17, 6, 30, 12, 0, time.FixedZone("", -3*3600))},
		{in: "D:20240517093012Z", want: time.Date(2024, 5, 17, 9, 30, 12, 0, time.UTC)},
		{in: "D:20240517", want: time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
		{in: "20240517093012", wantErr: true},
		{in: "D:notadate", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parsePDFDate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePDFDate(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePDFDate(%q): %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("parsePDFDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
