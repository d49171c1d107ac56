package crypto

import "errors"

// ErrAeadFailure is returned when an AEAD open fails authentication, either
// because of tampering or a key/nonce/AAD mismatch.
var ErrAeadFailure = errors.New("aead: authentication failed")

// ErrHMACMismatch is returned when a received HMAC tag does not match the
// locally recomputed one.
var ErrHMACMismatch = errors.New("hmac: tag mismatch")
