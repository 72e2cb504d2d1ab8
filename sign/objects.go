package sign

import (
	"fmt"
	"strings"

	"github.com/digitorus/pdf"
)

const byteRangePlaceholder = "/ByteRange[0 ********** ********** **********]"

// readDocumentRefs collects the indirect references the incremental update
// has to carry over: the first page, the page tree root, and the optional
// Names and Info dictionaries. The parser panics on damaged structures, so
// the whole walk runs under a scoped recover.
func readDocumentRefs(reader *pdf.Reader) (refs documentRefs, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	root := reader.Trailer().Key("Root")

	page, err := firstPage(root)
	if err != nil {
		return refs, fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}
	ptr := page.GetPtr()
	refs.page = fmt.Sprintf("%d %d R", ptr.GetID(), ptr.GetGen())

	for _, key := range root.Keys() {
		switch key {
		case "Pages":
			p := root.Key("Pages").GetPtr()
			refs.pages = fmt.Sprintf("%d %d R", p.GetID(), p.GetGen())
		case "Names":
			p := root.Key("Names").GetPtr()
			refs.names = fmt.Sprintf("%d %d R", p.GetID(), p.GetGen())
		}
	}
	if refs.pages == "" {
		return refs, fmt.Errorf("%w: document catalog has no page tree", ErrMalformedPDF)
	}

	if info := reader.Trailer().Key("Info"); !info.IsNull() {
		if p := info.GetPtr(); p.GetID() != 0 {
			refs.info = fmt.Sprintf("%d %d R", p.GetID(), p.GetGen())
		}
	}

	return refs, nil
}

// appendSignatureObject writes the signature dictionary with placeholders for
// ByteRange and Contents, recording where both live so they can be patched
// once the final layout is known.
func (ctx *context) appendSignatureObject() {
	var b strings.Builder
	b.WriteString("<< /Type /Sig")
	b.WriteString(" /Filter /Adobe.PPKLite")
	b.WriteString(" /SubFilter /adbe.pkcs7.detached")
	b.WriteString(" " + byteRangePlaceholder)
	b.WriteString(" /Contents<")
	b.WriteString(strings.Repeat("0", int(ctx.contentsHoleSize)))
	b.WriteString(">")

	info := ctx.request
	if info.Name != "" {
		b.WriteString(" /Name " + pdfString(info.Name))
	}
	if info.Location != "" {
		b.WriteString(" /Location " + pdfString(info.Location))
	}
	if info.Reason != "" {
		b.WriteString(" /Reason " + pdfString(info.Reason))
	}
	if info.ContactInfo != "" {
		b.WriteString(" /ContactInfo " + pdfString(info.ContactInfo))
	}
	b.WriteString(" /M " + pdfDateTime(info.Date))
	b.WriteString(" >>")

	body := b.String()
	offset := ctx.appendObject(ctx.signatureObjectID, body)

	// Offsets are relative to the object body, which starts after the
	// "<id> 0 obj\n" header line.
	header := int64(len(fmt.Sprintf("%d 0 obj\n", ctx.signatureObjectID)))
	ctx.byteRangeOffset = offset + header + int64(strings.Index(body, "/ByteRange"))
	ctx.contentsHoleOffset = offset + header + int64(strings.Index(body, "/Contents<")) + int64(len("/Contents<"))
}

// appendWidgetObject writes the signature field: an invisible widget on the
// first page. The visible attestation badge is part of the rendered page
// content, produced before signing, so the field itself never draws anything.
func (ctx *context) appendWidgetObject() {
	var b strings.Builder
	b.WriteString("<< /Type /Annot")
	b.WriteString(" /Subtype /Widget")
	b.WriteString(" /Rect [0 0 0 0]")
	b.WriteString(" /P " + ctx.refs.page)
	b.WriteString(" /F 4")
	b.WriteString(" /FT /Sig")
	b.WriteString(" /T " + pdfString("Signature1"))
	b.WriteString(" /Ff 0")
	fmt.Fprintf(&b, " /V %d 0 R", ctx.signatureObjectID)
	b.WriteString(" >>")

	ctx.appendObject(ctx.widgetObjectID, b.String())
}

// appendCatalogObject writes a replacement document catalog that carries the
// original page tree plus an AcroForm holding the new signature field.
func (ctx *context) appendCatalogObject() {
	var b strings.Builder
	b.WriteString("<< /Type /Catalog")
	b.WriteString(" /Pages " + ctx.refs.pages)
	if ctx.refs.names != "" {
		b.WriteString(" /Names " + ctx.refs.names)
	}
	fmt.Fprintf(&b, " /AcroForm << /Fields [%d 0 R] /NeedAppearances false /SigFlags 3 >>", ctx.widgetObjectID)
	b.WriteString(" >>")

	ctx.appendObject(ctx.catalogObjectID, b.String())
}

// firstPage walks the page tree down to the first leaf page.
func firstPage(root pdf.Value) (pdf.Value, error) {
	node := root.Key("Pages")
	for depth := 0; depth < 32; depth++ {
		switch node.Key("Type").String() {
		case "/Page":
			return node, nil
		case "/Pages":
			kids := node.Key("Kids")
			if kids.Len() == 0 {
				return pdf.Value{}, fmt.Errorf("page tree node has no kids")
			}
			node = kids.Index(0)
		default:
			return pdf.Value{}, fmt.Errorf("unexpected page tree node type %q", node.Key("Type").String())
		}
	}
	return pdf.Value{}, fmt.Errorf("page tree too deep")
}
