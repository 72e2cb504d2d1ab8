// Package sign embeds a detached CAdES (CMS) signature into a PDF using an
// incremental update: the original bytes are preserved verbatim and the
// signature dictionary, field and updated catalog are appended after them.
package sign

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pkcs7"
)

// maxAttempts bounds the re-sign loop that grows the Contents placeholder
// when a produced CMS structure turns out larger than estimated.
const maxAttempts = 3

// Sign returns a copy of input with one approval signature appended. The
// input bytes are never modified; callers can hash them independently of the
// signed result.
func Sign(input []byte, request Request) ([]byte, error) {
	if request.Signer == nil {
		return nil, ErrNilSigner
	}
	if request.Certificate == nil {
		return nil, ErrNilCertificate
	}
	if err := validateKeyMatch(request.Signer, request.Certificate); err != nil {
		return nil, err
	}
	if !request.DigestAlgorithm.Available() {
		request.DigestAlgorithm = crypto.SHA256
	}
	if request.Date.IsZero() {
		request.Date = time.Now()
	}

	reader, err := parsePDF(input)
	if err != nil {
		return nil, err
	}
	if reader.XrefInformation.Type != "table" {
		return nil, fmt.Errorf("%w: unsupported cross-reference type %q", ErrMalformedPDF, reader.XrefInformation.Type)
	}
	refs, err := readDocumentRefs(reader)
	if err != nil {
		return nil, err
	}

	holeSize, err := estimateContentsSize(request)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		ctx := &context{
			request: request,
			reader:  reader,
			input:   input,
			refs:    refs,
		}

		out, err := ctx.run(holeSize)
		if err == nil {
			return out, nil
		}
		var tooSmall errContentsTooSmall
		if !asContentsTooSmall(err, &tooSmall) {
			return nil, err
		}
		holeSize = int64(tooSmall) + 2
	}

	return nil, fmt.Errorf("sign: signature did not fit after %d attempts", maxAttempts)
}

// parsePDF opens the document. The underlying parser panics on some malformed
// files; anything it throws while reading the cross-reference chain means the
// input is not a PDF this engine can extend.
func parsePDF(input []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	reader, err = pdf.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}
	return reader, nil
}

// errContentsTooSmall reports the hex length the CMS structure actually
// needed, so the next attempt can size the placeholder accordingly.
type errContentsTooSmall int64

func (e errContentsTooSmall) Error() string {
	return fmt.Sprintf("sign: signature contents need %d bytes", int64(e))
}

func asContentsTooSmall(err error, target *errContentsTooSmall) bool {
	e, ok := err.(errContentsTooSmall)
	if ok {
		*target = e
	}
	return ok
}

// run performs one complete signing pass with a fixed placeholder size. The
// incremental body is appended to a copy of the input; the ByteRange and
// Contents placeholders are then overwritten in place in the finished slice.
func (ctx *context) run(holeSize int64) ([]byte, error) {
	ctx.contentsHoleSize = holeSize
	ctx.output = new(bytes.Buffer)
	ctx.output.Grow(len(ctx.input) + int(holeSize) + 4096)

	ctx.output.Write(ctx.input)
	// The incremental body starts on a fresh line after the original %%EOF.
	ctx.output.WriteByte('\n')

	// Object numbers continue where the document's cross-reference ends.
	next := uint32(ctx.reader.XrefInformation.ItemCount)
	ctx.signatureObjectID = next
	ctx.widgetObjectID = next + 1
	ctx.catalogObjectID = next + 2

	ctx.appendSignatureObject()
	ctx.appendWidgetObject()
	ctx.appendCatalogObject()
	ctx.writeXrefAndTrailer()

	out := ctx.output.Bytes()
	if err := ctx.patchByteRange(out); err != nil {
		return nil, err
	}

	signature, err := ctx.buildCMS(out)
	if err != nil {
		return nil, err
	}

	encoded := make([]byte, hex.EncodedLen(len(signature)))
	hex.Encode(encoded, signature)
	if int64(len(encoded)) > ctx.contentsHoleSize {
		return nil, errContentsTooSmall(len(encoded))
	}
	copy(out[ctx.contentsHoleOffset:], encoded)

	return out, nil
}

// appendObject writes one numbered object at the current end of the output
// and records its offset for the cross-reference section.
func (ctx *context) appendObject(id uint32, body string) (offset int64) {
	offset = int64(ctx.output.Len())
	ctx.newObjectOffsets = append(ctx.newObjectOffsets, offset)
	fmt.Fprintf(ctx.output, "%d 0 obj\n%s\nendobj\n", id, body)
	return offset
}

// estimateContentsSize predicts the hex-encoded CMS size: signature value,
// two digests, the certificates carried in the structure and ASN.1 overhead.
// A timestamp token's size is unknown until the TSA answers, so a generous
// constant is reserved for it.
func estimateContentsSize(request Request) (int64, error) {
	size := 1024 // SignedData framing, algorithms, signed attributes

	sigSize, err := signatureSize(request.Signer)
	if err != nil {
		return 0, err
	}
	size += sigSize
	size += 2 * request.DigestAlgorithm.Size()

	degenerated, err := pkcs7.DegenerateCertificate(request.Certificate.Raw)
	if err != nil {
		return 0, fmt.Errorf("degenerate certificate: %w", err)
	}
	size += len(degenerated)
	size += len(request.Certificate.RawIssuer)

	for _, cert := range request.Chain {
		degenerated, err := pkcs7.DegenerateCertificate(cert.Raw)
		if err != nil {
			return 0, fmt.Errorf("degenerate chain certificate: %w", err)
		}
		size += len(degenerated)
	}

	if request.TSA.URL != "" {
		size += 9000
	}

	return int64(hex.EncodedLen(size)), nil
}
