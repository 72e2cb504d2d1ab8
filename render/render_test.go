package render

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/digitorus/pdf"
)

func parse(t *testing.T, content []byte) *pdf.Reader {
	t.Helper()
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("rendered PDF does not parse: %v", err)
	}
	return reader
}

func TestRenderSinglePage(t *testing.T) {
	content, err := Render(Content{
		Title: "Receituario Medico",
		Lines: []string{"Paciente: Maria", "Dipirona 500mg"},
	})
	if err != nil {
		t.Fatal(err)
	}

	reader := parse(t, content)
	if n := reader.NumPage(); n != 1 {
		t.Fatalf("NumPage = %d, want 1", n)
	}
	if !bytes.Contains(content, []byte("(1/1) Tj")) {
		t.Error("missing page footer")
	}
	if !bytes.Contains(content, []byte("Receituario Medico")) {
		t.Error("missing title")
	}
}

func TestRenderPaginatesAndStampsFooters(t *testing.T) {
	var lines []string
	for i := 0; i < linesPerPage*2+5; i++ {
		lines = append(lines, fmt.Sprintf("linha %d", i))
	}

	content, err := Render(Content{Title: "Laudo", Lines: lines})
	if err != nil {
		t.Fatal(err)
	}

	reader := parse(t, content)
	if n := reader.NumPage(); n != 3 {
		t.Fatalf("NumPage = %d, want 3", n)
	}
	for i := 1; i <= 3; i++ {
		footer := fmt.Sprintf("(%d/3) Tj", i)
		if !bytes.Contains(content, []byte(footer)) {
			t.Errorf("missing footer %q", footer)
		}
	}
}

func TestRenderBadgeOnLastPageOnly(t *testing.T) {
	var lines []string
	for i := 0; i < linesPerPage+1; i++ {
		lines = append(lines, "conteudo")
	}

	signedAt := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	content, err := Render(Content{
		Lines: lines,
		Badge: &Badge{SignerName: "DR JOAO LIMA", SignedAt: signedAt},
	})
	if err != nil {
		t.Fatal(err)
	}

	parse(t, content)
	if n := bytes.Count(content, []byte("Documento assinado digitalmente por")); n != 1 {
		t.Fatalf("badge appears %d times, want 1", n)
	}
	if !bytes.Contains(content, []byte("17/05/2024 12:00:00 UTC")) {
		t.Error("missing badge timestamp")
	}
}

func TestRenderEmptyDocumentStillValid(t *testing.T) {
	content, err := Render(Content{})
	if err != nil {
		t.Fatal(err)
	}
	reader := parse(t, content)
	if n := reader.NumPage(); n != 1 {
		t.Fatalf("NumPage = %d, want 1", n)
	}
}

func TestEscapeText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"a(b)c", `a\(b\)c`},
		{`back\slash`, `back\\slash`},
		{"ação", "a\\347\\343o"},
		{"中文", "??"},
		{"tab\there", "tab here"},
	}
	for _, c := range cases {
		if got := escapeText(c.in); got != c.want {
			t.Errorf("escapeText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
