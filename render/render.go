// Package render produces the canonical unsigned PDF for a signable
// document: title, body text, the visible "digitally signed" badge and page
// footers. Everything here is written before cryptographic signing so the
// signature covers the complete visual content.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const (
	pageWidth  = 595 // A4 portrait in points
	pageHeight = 842

	marginLeft   = 50
	marginTop    = 60
	lineHeight   = 16
	linesPerPage = 42

	footerY = 30
	badgeY  = 70
)

// Badge is the visible signing attestation stamped into the page content.
type Badge struct {
	SignerName string
	SignedAt   time.Time
}

// Content is the laid-out document body handed over by a signable document.
type Content struct {
	Title string
	Lines []string
	Badge *Badge
}

// Render writes the document as a single-font, text-only PDF with an xref
// table, the shape the signing engine extends incrementally. Page numbers
// ("i/N") are stamped into each page footer here, never after signing.
func Render(c Content) ([]byte, error) {
	pages := paginate(c.Lines)
	if len(pages) == 0 {
		pages = [][]string{nil}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	// Objects: 1 catalog, 2 page tree, 3 font, then page/contents pairs.
	offsets := make([]int64, 0, 3+2*len(pages))
	writeObj := func(id int, body string) {
		offsets = append(offsets, int64(buf.Len()))
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, lines := range pages {
		pageID := 4 + 2*i
		contentsID := pageID + 1

		stream := contentStream(c, lines, i+1, len(pages))
		writeObj(pageID, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageWidth, pageHeight, contentsID))
		writeObj(contentsID, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d %05d n\r\n", off, 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)

	return buf.Bytes(), nil
}

// paginate splits body lines into pages, reserving room on the last page for
// the badge block.
func paginate(lines []string) [][]string {
	var pages [][]string
	for len(lines) > linesPerPage {
		pages = append(pages, lines[:linesPerPage])
		lines = lines[linesPerPage:]
	}
	return append(pages, lines)
}

func contentStream(c Content, lines []string, page, total int) string {
	var b strings.Builder

	y := pageHeight - marginTop
	b.WriteString("BT\n/F1 14 Tf\n")
	if page == 1 && c.Title != "" {
		fmt.Fprintf(&b, "%d %d Td (%s) Tj\n", marginLeft, y, escapeText(c.Title))
		y -= 2 * lineHeight
	}
	b.WriteString("/F1 11 Tf\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "1 0 0 1 %d %d Tm (%s) Tj\n", marginLeft, y, escapeText(line))
		y -= lineHeight
	}
	b.WriteString("ET\n")

	// Page footer, stamped pre-signing.
	fmt.Fprintf(&b, "BT\n/F1 9 Tf\n%d %d Td (%d/%d) Tj\nET\n", pageWidth/2-10, footerY, page, total)

	// The badge lands on the last page only.
	if c.Badge != nil && page == total {
		fmt.Fprintf(&b, "0.5 w %d %d %d %d re S\n", marginLeft, badgeY-34, pageWidth-2*marginLeft, 48)
		fmt.Fprintf(&b, "BT\n/F1 9 Tf\n%d %d Td (Documento assinado digitalmente por %s) Tj\nET\n",
			marginLeft+8, badgeY, escapeText(c.Badge.SignerName))
		fmt.Fprintf(&b, "BT\n/F1 9 Tf\n%d %d Td (Assinado em %s) Tj\nET\n",
			marginLeft+8, badgeY-14, c.Badge.SignedAt.UTC().Format("02/01/2006 15:04:05 UTC"))
	}

	return b.String()
}

// escapeText maps text to a WinAnsi PDF string literal: delimiters escaped,
// bytes outside ASCII written as octal escapes, unmappable runes replaced.
func escapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case r < 0x20:
			// skip control characters
		case r < 0x80:
			b.WriteRune(r)
		case r <= 0xFF:
			fmt.Fprintf(&b, "\\%03o", r)
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
