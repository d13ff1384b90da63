package siws

import "errors"

var (
	ErrUnsupportedShape = errors.New("unsupported byte encoding")
	ErrMalformedBytes   = errors.New("malformed byte encoding")
	ErrMalformedMessage = errors.New("malformed sign-in message")
	ErrNotCanonical     = errors.New("signed message is not canonical")
	ErrFieldMismatch    = errors.New("signed message does not match challenge")
	ErrAddressMismatch  = errors.New("signed address does not match public key")
	ErrOutsideValidity  = errors.New("sign-in message outside validity window")
	ErrInvalidKey       = errors.New("invalid public key")
	ErrBadSignature     = errors.New("signature verification failed")
)
