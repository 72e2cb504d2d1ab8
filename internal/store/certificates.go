package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apperrors "github.com/telecuidar/docsign/pkg/errors"
)

// CertificateRepo persists stored signing credentials. Every lookup is scoped
// to the owning professional; a certificate is never visible across owners.
type CertificateRepo struct {
	db *gorm.DB
}

func NewCertificateRepo(db *gorm.DB) *CertificateRepo {
	return &CertificateRepo{db: db}
}

// Create inserts the certificate. A second registration of the same
// thumbprint by the same owner violates idx_cert_owner_thumbprint and comes
// back as the duplicate error the upload flow shows to the user.
func (r *CertificateRepo) Create(ctx context.Context, cert *StoredCertificate) error {
	err := r.db.WithContext(ctx).Create(cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateCertificate
		}
		return errors.Wrap(err, "create certificate")
	}
	return nil
}

// ByIDAndOwner returns one active certificate. Wrong id and wrong owner are
// indistinguishable to the caller.
func (r *CertificateRepo) ByIDAndOwner(ctx context.Context, id, owner uuid.UUID) (*StoredCertificate, error) {
	var cert StoredCertificate
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ? AND active = ?", id, owner, true).
		First(&cert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCertificateNotFound
		}
		return nil, errors.Wrap(err, "load certificate")
	}
	return &cert, nil
}

func (r *CertificateRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]StoredCertificate, error) {
	var certs []StoredCertificate
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND active = ?", owner, true).
		Order("created_at DESC").
		Find(&certs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list certificates")
	}
	return certs, nil
}

// Update persists label and quick-use changes made by the service layer.
func (r *CertificateRepo) Update(ctx context.Context, cert *StoredCertificate) error {
	if err := r.db.WithContext(ctx).Save(cert).Error; err != nil {
		return errors.Wrap(err, "update certificate")
	}
	return nil
}

// Delete removes the credential row. Documents already signed with it keep
// their embedded signature data untouched.
func (r *CertificateRepo) Delete(ctx context.Context, id, owner uuid.UUID) error {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, owner).
		Delete(&StoredCertificate{})
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "delete certificate")
	}
	if tx.RowsAffected == 0 {
		return apperrors.ErrCertificateNotFound
	}
	return nil
}

// TouchLastUsed records a successful signing with this stored credential.
func (r *CertificateRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&StoredCertificate{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
	if err != nil {
		return errors.Wrap(err, "touch last used")
	}
	return nil
}
