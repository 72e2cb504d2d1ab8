// Package pfx reads PKCS#12 (.pfx) signing credentials as exported by
// browsers and OS keychains, and extracts the certificate metadata the
// platform stores alongside them.
package pfx

import (
	"crypto/rsa"
	"crypto/x509"
	stderrors "errors"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/telecuidar/docsign/pkg/errors"
)

// Credential is the parsed content of a .pfx container.
type Credential struct {
	Key   *rsa.PrivateKey
	Cert  *x509.Certificate
	Chain []*x509.Certificate
}

// Parse opens a PKCS#12 container with the given passphrase. Wrong passphrase
// and corrupt container collapse into one caller-visible error so stored
// credentials cannot be probed; the underlying cause stays attached for
// server-side logs.
func Parse(pfxData []byte, passphrase string) (*Credential, error) {
	key, cert, chain, err := pkcs12.DecodeChain(pfxData, passphrase)
	if err != nil {
		if stderrors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, errors.ErrBadPassphraseOrCorruptContainer.WithCause(err)
		}
		// A container that parses as a trust store has certificates but no
		// private key entry. That case is user-actionable and reported as
		// such; everything else is treated as a corrupt container.
		if _, tsErr := pkcs12.DecodeTrustStore(pfxData, passphrase); tsErr == nil {
			return nil, errors.ErrNoPrivateKeyInContainer
		}
		return nil, errors.ErrBadPassphraseOrCorruptContainer.WithCause(err)
	}
	if cert == nil {
		return nil, errors.ErrBadPassphraseOrCorruptContainer
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.ErrUnsupportedKeyType
	}

	return &Credential{Key: rsaKey, Cert: cert, Chain: chain}, nil
}
