package sign

import (
	"bytes"
	"crypto"
	"encoding/asn1"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// buildCMS digests the two ByteRange parts of the patched output and
// produces the detached SignedData structure that goes into the Contents hex
// string.
func (ctx *context) buildCMS(content []byte) ([]byte, error) {
	signedContent := make([]byte, 0, ctx.byteRange[1]+ctx.byteRange[3])
	signedContent = append(signedContent, content[ctx.byteRange[0]:ctx.byteRange[0]+ctx.byteRange[1]]...)
	signedContent = append(signedContent, content[ctx.byteRange[2]:ctx.byteRange[2]+ctx.byteRange[3]]...)

	signedData, err := pkcs7.NewSignedData(signedContent)
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}
	signedData.SetDigestAlgorithm(digestOID(ctx.request.DigestAlgorithm))

	signingCertificate, err := signingCertificateAttribute(ctx.request.Certificate.Raw, ctx.request.DigestAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("signing certificate attribute: %w", err)
	}

	config := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{*signingCertificate},
	}
	if err := signedData.AddSignerChain(ctx.request.Certificate, ctx.request.Signer, ctx.request.Chain, config); err != nil {
		return nil, fmt.Errorf("add signer chain: %w", err)
	}

	// The PDF carries the content; the CMS structure must not.
	signedData.Detach()

	if ctx.request.TSA.URL != "" {
		if err := ctx.addTimestampToken(signedData); err != nil {
			return nil, err
		}
	}

	return signedData.Finish()
}

// signingCertificateAttribute builds the CAdES signing-certificate-v2 signed
// attribute binding the signature to the exact signer certificate.
func signingCertificateAttribute(rawCert []byte, digest crypto.Hash) (*pkcs7.Attribute, error) {
	h := digest.New()
	h.Write(rawCert)

	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SigningCertificateV2
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // certs
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ESSCertIDv2
				if digest != crypto.SHA256 {
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(digestOID(digest))
					})
				}
				b.AddASN1OctetString(h.Sum(nil))
			})
		})
	})

	value, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	return &pkcs7.Attribute{
		Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47},
		Value: asn1.RawValue{FullBytes: value},
	}, nil
}

// addTimestampToken requests an RFC 3161 token over the signature value and
// attaches it as an unauthenticated attribute.
func (ctx *context) addTimestampToken(signedData *pkcs7.SignedData) error {
	inner := signedData.GetSignedData()

	token, err := ctx.fetchTimestamp(inner.SignerInfos[0].EncryptedDigest)
	if err != nil {
		return fmt.Errorf("get timestamp: %w", err)
	}

	ts, err := timestamp.ParseResponse(token)
	if err != nil {
		return fmt.Errorf("parse timestamp response: %w", err)
	}
	if _, err := pkcs7.Parse(ts.RawToken); err != nil {
		return fmt.Errorf("parse timestamp token: %w", err)
	}

	attribute := pkcs7.Attribute{
		Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14},
		Value: asn1.RawValue{FullBytes: ts.RawToken},
	}
	return inner.SignerInfos[0].SetUnauthenticatedAttributes([]pkcs7.Attribute{attribute})
}

func (ctx *context) fetchTimestamp(signature []byte) ([]byte, error) {
	request, err := timestamp.CreateRequest(bytes.NewReader(signature), &timestamp.RequestOptions{
		Certificates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create timestamp request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, ctx.request.TSA.URL, bytes.NewReader(request))
	if err != nil {
		return nil, fmt.Errorf("prepare timestamp request (%s): %w", ctx.request.TSA.URL, err)
	}
	req.Header.Add("Content-Type", "application/timestamp-query")
	req.Header.Add("Content-Transfer-Encoding", "binary")
	if ctx.request.TSA.Username != "" && ctx.request.TSA.Password != "" {
		req.SetBasicAuth(ctx.request.TSA.Username, ctx.request.TSA.Password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("timestamp authority returned %s: %s", strconv.Itoa(resp.StatusCode), body)
	}

	return io.ReadAll(resp.Body)
}
