// Package signing orchestrates the digital signing workflow: credential
// management, document hashing, rendering, CAdES signing and the atomic
// persist of the signed result.
package signing

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecuidar/docsign/dochash"
	"github.com/telecuidar/docsign/internal/store"
	"github.com/telecuidar/docsign/pfx"
	apperrors "github.com/telecuidar/docsign/pkg/errors"
	"github.com/telecuidar/docsign/render"
	"github.com/telecuidar/docsign/sign"
	"github.com/telecuidar/docsign/vault"
)

// Options carries signature dictionary defaults and the optional timestamp
// authority.
type Options struct {
	Location string
	Reason   string
	TSA      sign.TSA
}

// Service is the signing orchestrator. All public errors are coded AppErrors;
// raw library errors never cross this boundary.
type Service struct {
	certs *store.CertificateRepo
	docs  *store.DocumentRepo
	vault *vault.Vault
	log   *zap.Logger
	opts  Options

	now func() time.Time
}

func NewService(certs *store.CertificateRepo, docs *store.DocumentRepo, v *vault.Vault, log *zap.Logger, opts Options) *Service {
	return &Service{
		certs: certs,
		docs:  docs,
		vault: v,
		log:   log.With(zap.String("service", "signing")),
		opts:  opts,
		now:   time.Now,
	}
}

// CertificateInfo is the metadata preview shown before a credential is
// stored. It never carries key material.
type CertificateInfo struct {
	SubjectDN  string
	IssuerDN   string
	Thumbprint string
	HolderName string
	HolderCPF  string
	NotBefore  time.Time
	NotAfter   time.Time
}

func infoFromMetadata(m pfx.Metadata) *CertificateInfo {
	return &CertificateInfo{
		SubjectDN:  m.SubjectDN,
		IssuerDN:   m.IssuerDN,
		Thumbprint: m.Thumbprint,
		HolderName: m.HolderName,
		HolderCPF:  m.HolderCPF,
		NotBefore:  m.NotBefore,
		NotAfter:   m.NotAfter,
	}
}

// ValidateCertificate opens a PKCS#12 container and returns its metadata
// without persisting anything. An expired certificate is an error; the
// platform never registers credentials it cannot sign with.
func (s *Service) ValidateCertificate(pfxData []byte, passphrase string) (*CertificateInfo, error) {
	cred, err := pfx.Parse(pfxData, passphrase)
	if err != nil {
		return nil, err
	}
	meta := pfx.Extract(cred.Cert)
	if meta.Expired(s.now()) {
		return nil, apperrors.ErrCertificateExpired
	}
	return infoFromMetadata(meta), nil
}

// SaveCertificate validates and stores a credential encrypted at rest. With
// quickUse the passphrase is stored too (encrypted, own IV) so later signing
// does not prompt for it.
func (s *Service) SaveCertificate(ctx context.Context, owner uuid.UUID, pfxData []byte, passphrase, label string, quickUse bool) (*store.StoredCertificate, error) {
	cred, err := pfx.Parse(pfxData, passphrase)
	if err != nil {
		return nil, err
	}
	meta := pfx.Extract(cred.Cert)
	if meta.Expired(s.now()) {
		return nil, apperrors.ErrCertificateExpired
	}

	encryptedPfx, pfxIV, err := s.vault.Encrypt(pfxData)
	if err != nil {
		s.log.Error("encrypt container", zap.Error(err))
		return nil, apperrors.Internal("could not store certificate").WithCause(err)
	}

	cert := &store.StoredCertificate{
		OwnerID:      owner,
		Label:        label,
		SubjectDN:    meta.SubjectDN,
		IssuerDN:     meta.IssuerDN,
		Thumbprint:   meta.Thumbprint,
		HolderName:   meta.HolderName,
		HolderCPF:    meta.HolderCPF,
		NotBefore:    meta.NotBefore,
		NotAfter:     meta.NotAfter,
		EncryptedPfx: encryptedPfx,
		PfxIV:        pfxIV,
		QuickUse:     quickUse,
		Active:       true,
	}
	if quickUse {
		encryptedPassword, passwordIV, err := s.vault.Encrypt([]byte(passphrase))
		if err != nil {
			s.log.Error("encrypt passphrase", zap.Error(err))
			return nil, apperrors.Internal("could not store certificate").WithCause(err)
		}
		cert.EncryptedPassword = encryptedPassword
		cert.PasswordIV = passwordIV
	}

	if err := s.certs.Create(ctx, cert); err != nil {
		return nil, err
	}

	s.log.Info("certificate stored",
		zap.String("owner_id", owner.String()),
		zap.String("thumbprint", cert.Thumbprint),
		zap.Bool("quick_use", quickUse))
	return cert, nil
}

// CertificateUpdate lists the mutable certificate attributes. Nil pointers
// leave the attribute unchanged.
type CertificateUpdate struct {
	Label    *string
	QuickUse *bool
	// Active false soft-disables the credential without touching documents
	// already signed with it.
	Active *bool
	// Passphrase is required when QuickUse flips to true; it is re-checked
	// against the stored container before being persisted encrypted.
	Passphrase string
}

func (s *Service) UpdateCertificate(ctx context.Context, owner, id uuid.UUID, upd CertificateUpdate) (*store.StoredCertificate, error) {
	cert, err := s.certs.ByIDAndOwner(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	if upd.Label != nil {
		cert.Label = *upd.Label
	}

	if upd.Active != nil {
		cert.Active = *upd.Active
	}

	if upd.QuickUse != nil && *upd.QuickUse != cert.QuickUse {
		if *upd.QuickUse {
			if upd.Passphrase == "" {
				return nil, apperrors.ErrPassphraseRequired
			}
			pfxData, err := s.decryptContainer(cert)
			if err != nil {
				return nil, err
			}
			if _, err := pfx.Parse(pfxData, upd.Passphrase); err != nil {
				return nil, err
			}
			encryptedPassword, passwordIV, err := s.vault.Encrypt([]byte(upd.Passphrase))
			if err != nil {
				s.log.Error("encrypt passphrase", zap.Error(err))
				return nil, apperrors.Internal("could not update certificate").WithCause(err)
			}
			cert.QuickUse = true
			cert.EncryptedPassword = encryptedPassword
			cert.PasswordIV = passwordIV
		} else {
			cert.QuickUse = false
			cert.EncryptedPassword = ""
			cert.PasswordIV = ""
		}
	}

	if err := s.certs.Update(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *Service) DeleteCertificate(ctx context.Context, owner, id uuid.UUID) error {
	if err := s.certs.Delete(ctx, id, owner); err != nil {
		return err
	}
	s.log.Info("certificate deleted",
		zap.String("owner_id", owner.String()),
		zap.String("certificate_id", id.String()))
	return nil
}

func (s *Service) ListCertificates(ctx context.Context, owner uuid.UUID) ([]store.StoredCertificate, error) {
	return s.certs.ListByOwner(ctx, owner)
}

// CredentialRef selects the signing credential: a one-time uploaded
// container, or a stored certificate addressed by id. For stored quick-use
// certificates the passphrase may be omitted.
type CredentialRef struct {
	PfxBytes      []byte
	Passphrase    string
	CertificateID uuid.UUID
}

func (c CredentialRef) oneTime() bool { return len(c.PfxBytes) > 0 }

// SignResult is what callers get back after a successful signing. The signed
// PDF itself lives on the document row.
type SignResult struct {
	DocumentHash       string
	CertificateSubject string
	SignedAt           time.Time
}

// SignDocument runs the full workflow: resolve the credential, hash the
// document content, render the PDF with the signature badge, embed the CAdES
// signature and persist the outcome exactly once.
func (s *Service) SignDocument(ctx context.Context, owner uuid.UUID, doc store.Signable, cred CredentialRef) (*SignResult, error) {
	if doc.Professional() != owner {
		return nil, apperrors.ErrNotFoundOrNotOwner
	}
	if err := s.docs.Load(ctx, doc); err != nil {
		return nil, err
	}
	if doc.Triple().Signed() {
		return nil, apperrors.ErrAlreadySigned
	}

	credential, storedCert, err := s.resolveCredential(ctx, owner, cred)
	if err != nil {
		return nil, err
	}

	signedAt := s.now().UTC()
	meta := pfx.Extract(credential.Cert)
	if meta.Expired(signedAt) {
		return nil, apperrors.ErrCertificateExpired
	}

	displayName := meta.HolderName
	if displayName == "" {
		displayName = meta.SubjectDN
	}

	hash := dochash.Sum(doc.HashFields())

	content := doc.RenderContent()
	content.Badge = &render.Badge{SignerName: displayName, SignedAt: signedAt}
	unsigned, err := render.Render(content)
	if err != nil {
		s.log.Error("render document",
			zap.String("document_id", doc.DocumentID().String()),
			zap.Error(err))
		return nil, apperrors.ErrSigningFailed.WithCause(err)
	}

	signed, err := sign.Sign(unsigned, sign.Request{
		Signer:      credential.Key,
		Certificate: credential.Cert,
		Chain:       credential.Chain,
		Name:        displayName,
		Location:    s.opts.Location,
		Reason:      s.opts.Reason,
		Date:        signedAt,
		TSA:         s.opts.TSA,
	})
	if err != nil {
		s.log.Error("sign document",
			zap.String("document_id", doc.DocumentID().String()),
			zap.String("kind", string(doc.Kind())),
			zap.Error(err))
		return nil, apperrors.ErrSigningFailed.WithCause(err)
	}

	triple := store.SignedTriple{
		SignedPDF:             base64.StdEncoding.EncodeToString(signed),
		DocumentHash:          hash,
		CertificateSubject:    meta.SubjectDN,
		CertificateThumbprint: meta.Thumbprint,
		SignedAt:              &signedAt,
	}
	if err := s.docs.ApplySignature(ctx, doc, triple); err != nil {
		return nil, err
	}

	if storedCert != nil {
		if err := s.certs.TouchLastUsed(ctx, storedCert.ID, signedAt); err != nil {
			s.log.Warn("touch last used",
				zap.String("certificate_id", storedCert.ID.String()),
				zap.Error(err))
		}
	}

	s.log.Info("document signed",
		zap.String("document_id", doc.DocumentID().String()),
		zap.String("kind", string(doc.Kind())),
		zap.String("thumbprint", meta.Thumbprint))

	return &SignResult{
		DocumentHash:       hash,
		CertificateSubject: meta.SubjectDN,
		SignedAt:           signedAt,
	}, nil
}

// ValidateDocumentHash answers the public verification surface: does any
// signed document carry this hash. Malformed tokens are simply false.
func (s *Service) ValidateDocumentHash(ctx context.Context, hash string) (bool, error) {
	if !dochash.Valid(hash) {
		return false, nil
	}
	return s.docs.HashIsSigned(ctx, hash)
}

// resolveCredential opens the one-time container or the stored one. The
// returned StoredCertificate is non-nil only for stored credentials.
func (s *Service) resolveCredential(ctx context.Context, owner uuid.UUID, cred CredentialRef) (*pfx.Credential, *store.StoredCertificate, error) {
	if cred.oneTime() {
		credential, err := pfx.Parse(cred.PfxBytes, cred.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		return credential, nil, nil
	}

	if cred.CertificateID == uuid.Nil {
		return nil, nil, apperrors.InvalidArg("no signing credential provided")
	}

	cert, err := s.certs.ByIDAndOwner(ctx, cred.CertificateID, owner)
	if err != nil {
		return nil, nil, err
	}

	// A quick-use credential always opens with the passphrase validated at
	// enrollment; anything the caller sends along is ignored.
	var passphrase string
	if cert.QuickUse {
		decrypted, err := s.vault.Decrypt(cert.EncryptedPassword, cert.PasswordIV)
		if err != nil {
			s.log.Error("decrypt stored passphrase",
				zap.String("certificate_id", cert.ID.String()),
				zap.Error(err))
			return nil, nil, apperrors.ErrDecryptionFailed
		}
		passphrase = string(decrypted)
	} else {
		if cred.Passphrase == "" {
			return nil, nil, apperrors.ErrPassphraseRequired
		}
		passphrase = cred.Passphrase
	}

	pfxData, err := s.decryptContainer(cert)
	if err != nil {
		return nil, nil, err
	}
	credential, err := pfx.Parse(pfxData, passphrase)
	if err != nil {
		return nil, nil, err
	}
	return credential, cert, nil
}

func (s *Service) decryptContainer(cert *store.StoredCertificate) ([]byte, error) {
	pfxData, err := s.vault.Decrypt(cert.EncryptedPfx, cert.PfxIV)
	if err != nil {
		s.log.Error("decrypt stored container",
			zap.String("certificate_id", cert.ID.String()),
			zap.Error(err))
		return nil, apperrors.ErrDecryptionFailed
	}
	return pfxData, nil
}
