package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	apperrors "github.com/telecuidar/docsign/pkg/errors"
)

// DocumentRepo persists the four signable document kinds through the
// Signable interface; gorm routes each call to the concrete kind's table.
type DocumentRepo struct {
	db *gorm.DB
}

func NewDocumentRepo(db *gorm.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc Signable) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return errors.Wrapf(err, "create %s", doc.Kind())
	}
	return nil
}

// Load fetches the document into doc, scoped to the owning professional.
func (r *DocumentRepo) Load(ctx context.Context, doc Signable) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND professional_id = ?", doc.DocumentID(), doc.Professional()).
		First(doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFoundOrNotOwner
		}
		return errors.Wrapf(err, "load %s", doc.Kind())
	}
	return nil
}

// Update rewrites the document's content fields. Signed documents are
// immutable.
func (r *DocumentRepo) Update(ctx context.Context, doc Signable) error {
	if doc.Triple().Signed() {
		return apperrors.ErrDocumentSigned
	}
	// Select pins the column list; a plain struct update would skip fields
	// cleared to their zero value.
	tx := r.db.WithContext(ctx).
		Model(doc).
		Select(doc.ContentColumns()).
		Where("id = ? AND professional_id = ? AND signed_at IS NULL", doc.DocumentID(), doc.Professional()).
		Updates(doc)
	if tx.Error != nil {
		return errors.Wrapf(tx.Error, "update %s", doc.Kind())
	}
	if tx.RowsAffected == 0 {
		return apperrors.ErrNotFoundOrNotOwner
	}
	return nil
}

// Delete removes an unsigned document. A signed document is a legal record
// and stays.
func (r *DocumentRepo) Delete(ctx context.Context, doc Signable) error {
	if doc.Triple().Signed() {
		return apperrors.ErrDocumentSigned
	}
	tx := r.db.WithContext(ctx).
		Where("id = ? AND professional_id = ? AND signed_at IS NULL", doc.DocumentID(), doc.Professional()).
		Delete(doc)
	if tx.Error != nil {
		return errors.Wrapf(tx.Error, "delete %s", doc.Kind())
	}
	if tx.RowsAffected == 0 {
		return apperrors.ErrNotFoundOrNotOwner
	}
	return nil
}

// ApplySignature persists the signing outcome with a conditional update so a
// document transitions from unsigned to signed at most once, no matter how
// many signing attempts race. Zero affected rows means someone else won.
func (r *DocumentRepo) ApplySignature(ctx context.Context, doc Signable, triple SignedTriple) error {
	tx := r.db.WithContext(ctx).
		Model(doc).
		Where("id = ? AND signed_at IS NULL", doc.DocumentID()).
		Updates(map[string]interface{}{
			"signed_pdf":             triple.SignedPDF,
			"document_hash":          triple.DocumentHash,
			"certificate_subject":    triple.CertificateSubject,
			"certificate_thumbprint": triple.CertificateThumbprint,
			"signed_at":              triple.SignedAt,
		})
	if tx.Error != nil {
		return errors.Wrapf(tx.Error, "apply signature to %s", doc.Kind())
	}
	if tx.RowsAffected == 0 {
		return apperrors.ErrAlreadySigned
	}
	*doc.Triple() = triple
	return nil
}

// HashIsSigned reports whether any signed document of any kind carries the
// given content hash. This backs the public verification endpoint, so it
// leaks nothing beyond the boolean.
func (r *DocumentRepo) HashIsSigned(ctx context.Context, hash string) (bool, error) {
	for _, model := range []interface{}{
		&Prescription{},
		&MedicalCertificate{},
		&ExamRequest{},
		&MedicalReport{},
	} {
		var count int64
		err := r.db.WithContext(ctx).
			Model(model).
			Where("document_hash = ? AND signed_at IS NOT NULL", hash).
			Count(&count).Error
		if err != nil {
			return false, errors.Wrap(err, "check document hash")
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
