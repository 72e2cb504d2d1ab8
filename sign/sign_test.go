package sign

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/telecuidar/docsign/internal/testpki"
	"github.com/telecuidar/docsign/render"
	"github.com/telecuidar/docsign/verify"
)

func renderTestPDF(t *testing.T) []byte {
	t.Helper()
	content, err := render.Render(render.Content{
		Title: "Receituario",
		Lines: []string{
			"Paciente: Maria Souza",
			"Dipirona 500mg, um comprimido a cada 8 horas por 3 dias.",
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return content
}

func TestSignAndVerify(t *testing.T) {
	pki := testpki.New(t)
	key, cert := pki.IssueLeaf(testpki.LeafOptions{
		CommonName: "JOAO DA SILVA:52998224725",
		CPF:        "52998224725",
	})
	unsigned := renderTestPDF(t)

	signedAt := time.Date(2024, 5, 17, 9, 30, 12, 0, time.UTC)
	signed, err := Sign(unsigned, Request{
		Signer:      key,
		Certificate: cert,
		Chain:       []*x509.Certificate{pki.RootCert},
		Name:        "JOAO DA SILVA",
		Reason:      "Assinatura de receituario",
		Location:    "Brasil",
		ContactInfo: "joao@example.com",
		Date:        signedAt,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !bytes.HasPrefix(signed, unsigned) {
		t.Fatal("signed output must append to the original bytes, not rewrite them")
	}
	if len(signed) <= len(unsigned) {
		t.Fatal("signed output should be longer than the input")
	}

	result, err := verify.File(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(result.Signatures) != 1 {
		t.Fatalf("got %d signatures, want 1", len(result.Signatures))
	}

	sig := result.Signatures[0]
	if !sig.Valid {
		t.Error("signature did not validate")
	}
	if !sig.CoversWholeDocument {
		t.Error("byte ranges should cover everything but the contents hole")
	}
	if sig.Name != "JOAO DA SILVA" {
		t.Errorf("name = %q", sig.Name)
	}
	if sig.Reason != "Assinatura de receituario" {
		t.Errorf("reason = %q", sig.Reason)
	}
	if sig.Location != "Brasil" {
		t.Errorf("location = %q", sig.Location)
	}
	if sig.Certificate == nil {
		t.Fatal("no signer certificate recovered")
	}
	if got := sig.Certificate.Subject.CommonName; got != "JOAO DA SILVA:52998224725" {
		t.Errorf("signer CN = %q", got)
	}
	if sig.SigningTime.IsZero() {
		t.Error("signing time not recovered from the signature dictionary")
	}
}

// Patching the ByteRange and Contents placeholders happens in the middle of
// the finished output; nothing written after them may be lost or shifted.
func TestSignPatchesPlaceholdersInPlace(t *testing.T) {
	pki := testpki.New(t)
	key, cert := pki.IssueLeaf(testpki.LeafOptions{CommonName: "DR REMENDO:52998224725"})

	signed, err := Sign(renderTestPDF(t), Request{Signer: key, Certificate: cert})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !bytes.HasSuffix(signed, []byte("%%EOF\n")) {
		t.Fatal("trailer lost after patching the signature dictionary")
	}

	idx := bytes.Index(signed, []byte("/ByteRange["))
	if idx < 0 {
		t.Fatal("no ByteRange in signed output")
	}
	end := bytes.IndexByte(signed[idx:], ']')
	if end < 0 {
		t.Fatal("unterminated ByteRange array")
	}

	var br [4]int64
	fields := strings.Fields(string(signed[idx+len("/ByteRange[") : idx+end]))
	if len(fields) != 4 {
		t.Fatalf("byte range has %d fields: %q", len(fields), fields)
	}
	for i, f := range fields {
		if _, err := fmt.Sscan(f, &br[i]); err != nil {
			t.Fatalf("byte range field %q: %v", f, err)
		}
	}
	if br[2]+br[3] != int64(len(signed)) {
		t.Errorf("byte range %v does not reach the end of the %d byte file", br, len(signed))
	}

	// The hole between the two ranges holds the hex Contents string.
	if signed[br[1]] != '<' || signed[br[2]-1] != '>' {
		t.Error("contents hole delimiters not where the byte range points")
	}
	for _, c := range signed[br[1]+1 : br[2]-1] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			t.Fatalf("non-hex byte %q inside the contents hole", c)
		}
	}
}

func TestSignDetectsTampering(t *testing.T) {
	pki := testpki.New(t)
	key, cert := pki.IssueLeaf(testpki.LeafOptions{CommonName: "DRA ANA:11144477735"})
	unsigned := renderTestPDF(t)

	signed, err := Sign(unsigned, Request{Signer: key, Certificate: cert})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Flip a byte inside the original document body, outside the CMS hole.
	tampered := bytes.Clone(signed)
	idx := bytes.Index(tampered, []byte("Maria"))
	if idx < 0 {
		t.Fatal("test fixture missing expected text")
	}
	tampered[idx] ^= 0x01

	result, err := verify.File(tampered)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if len(result.Signatures) != 1 {
		t.Fatalf("got %d signatures, want 1", len(result.Signatures))
	}
	if result.Signatures[0].Valid {
		t.Error("tampered document must not verify")
	}
}

func TestSignNilArguments(t *testing.T) {
	pki := testpki.New(t)
	key, cert := pki.IssueLeaf(testpki.LeafOptions{CommonName: "DR NULO:52998224725"})
	unsigned := renderTestPDF(t)

	if _, err := Sign(unsigned, Request{Certificate: cert}); !errors.Is(err, ErrNilSigner) {
		t.Errorf("missing signer: got %v, want ErrNilSigner", err)
	}
	if _, err := Sign(unsigned, Request{Signer: key}); !errors.Is(err, ErrNilCertificate) {
		t.Errorf("missing certificate: got %v, want ErrNilCertificate", err)
	}
}

func TestSignKeyCertificateMismatch(t *testing.T) {
	pki := testpki.New(t)
	_, cert := pki.IssueLeaf(testpki.LeafOptions{CommonName: "DR UM:52998224725"})
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	_, err = Sign(renderTestPDF(t), Request{Signer: otherKey, Certificate: cert})
	if !errors.Is(err, ErrKeyCertificateMismatch) {
		t.Errorf("got %v, want ErrKeyCertificateMismatch", err)
	}
}

func TestSignMalformedInput(t *testing.T) {
	pki := testpki.New(t)
	key, cert := pki.IssueLeaf(testpki.LeafOptions{CommonName: "DR PDF:52998224725"})

	for _, input := range [][]byte{
		nil,
		[]byte(""),
		[]byte("this is not a pdf"),
		[]byte("%PDF-1.7\ntruncated garbage"),
	} {
		if _, err := Sign(input, Request{Signer: key, Certificate: cert}); !errors.Is(err, ErrMalformedPDF) {
			t.Errorf("input %q: got %v, want ErrMalformedPDF", truncate(input), err)
		}
	}
}

func TestSignRejectsBrokenPageTree(t *testing.T) {
	pki := testpki.New(t)
	key, cert := pki.IssueLeaf(testpki.LeafOptions{CommonName: "DR ARVORE:52998224725"})

	// Same-length rename keeps every xref offset valid while severing the
	// catalog's page tree reference.
	broken := bytes.ReplaceAll(renderTestPDF(t), []byte("/Pages"), []byte("/Pagez"))

	if _, err := Sign(broken, Request{Signer: key, Certificate: cert}); !errors.Is(err, ErrMalformedPDF) {
		t.Errorf("got %v, want ErrMalformedPDF", err)
	}
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}

func TestPDFString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "()"},
		{"plain", "(plain)"},
		{"with (parens)", `(with \(parens\))`},
		{`back\slash`, `(back\\slash)`},
	}
	for _, tc := range cases {
		if got := pdfString(tc.in); got != tc.want {
			t.Errorf("pdfString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// Non-ASCII text switches to UTF-16BE with a byte order mark.
	got := pdfString("Receituário")
	if !strings.HasPrefix(got, "(\xfe\xff") {
		t.Errorf("pdfString(non-ASCII) = %q, want UTF-16BE BOM prefix", got)
	}
}

func TestPDFDateTime(t *testing.T) {
	utc := time.Date(2024, 5, 17, 9, 30, 12, 0, time.UTC)
	if got := pdfDateTime(utc); got != "(D:20240517093012+00'00')" {
		t.Errorf("utc = %q", got)
	}

	sp := time.FixedZone("BRT", -3*60*60)
	if got := pdfDateTime(utc.In(sp)); got != "(D:20240517063012-03'00')" {
		t.Errorf("brt = %q", got)
	}
}
