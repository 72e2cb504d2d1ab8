package sign

import (
	"fmt"
	"strings"
)

// writeXrefAndTrailer appends the incremental cross-reference section and a
// trailer pointing back at the previous one.
func (ctx *context) writeXrefAndTrailer() {
	xrefStart := int64(ctx.output.Len())

	// One contiguous subsection covering the three appended objects.
	fmt.Fprintf(ctx.output, "xref\n%d %d\n", ctx.signatureObjectID, len(ctx.newObjectOffsets))
	for _, offset := range ctx.newObjectOffsets {
		fmt.Fprintf(ctx.output, "%010d %05d n\r\n", offset, 0)
	}

	size := ctx.reader.XrefInformation.ItemCount + int64(len(ctx.newObjectOffsets))
	trailer := fmt.Sprintf("trailer\n<< /Size %d /Root %d 0 R /Prev %d",
		size, ctx.catalogObjectID, ctx.reader.XrefInformation.StartPos)
	if ctx.refs.info != "" {
		trailer += " /Info " + ctx.refs.info
	}
	trailer += " >>\n"

	ctx.output.WriteString(trailer)
	fmt.Fprintf(ctx.output, "startxref\n%d\n%%%%EOF\n", xrefStart)
}

// patchByteRange computes the final ByteRange pair and overwrites the
// placeholder in out, padded to the placeholder's exact width.
func (ctx *context) patchByteRange(out []byte) error {
	total := int64(len(out))

	ctx.byteRange[0] = 0
	// Part one ends at the '<' that opens the Contents hex string.
	ctx.byteRange[1] = ctx.contentsHoleOffset - 1
	// Part two starts after the closing '>'.
	ctx.byteRange[2] = ctx.contentsHoleOffset + ctx.contentsHoleSize + 1
	ctx.byteRange[3] = total - ctx.byteRange[2]

	patched := fmt.Sprintf("/ByteRange[%d %d %d %d]",
		ctx.byteRange[0], ctx.byteRange[1], ctx.byteRange[2], ctx.byteRange[3])
	if len(patched) > len(byteRangePlaceholder) {
		return fmt.Errorf("sign: byte range %q exceeds placeholder", patched)
	}
	patched += strings.Repeat(" ", len(byteRangePlaceholder)-len(patched))

	copy(out[ctx.byteRangeOffset:], patched)
	return nil
}
