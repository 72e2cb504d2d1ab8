package errors

var (
	// Credential errors. Wrong passphrase and corrupt container share a single
	// message so callers cannot probe which of the two happened.
	ErrBadPassphraseOrCorruptContainer = InvalidArg("incorrect password or invalid certificate file")
	ErrNoPrivateKeyInContainer         = InvalidArg("this file is not a valid signing certificate")
	ErrUnsupportedKeyType              = InvalidArg("certificate key type is not supported, an RSA key is required")
	ErrCertificateExpired              = FailedPrecondition("certificate has expired")
	ErrCertificateNotFound             = NotFound("certificate not found")
	ErrDuplicateCertificate            = AlreadyExists("this certificate is already registered")
	ErrPassphraseRequired              = InvalidArg("certificate password is required")

	// Document errors. Not-found and not-owner share one message to avoid
	// leaking document existence across professionals.
	ErrNotFoundOrNotOwner = NotFound("document not found")
	ErrAlreadySigned      = Conflict("document is already signed")
	ErrDocumentSigned     = Conflict("signed documents cannot be modified")

	// Internal failures, surfaced without detail.
	ErrDecryptionFailed = Internal("stored credential could not be decrypted")
	ErrSigningFailed    = Internal("document could not be signed")
)
