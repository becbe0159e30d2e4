package crypto

import "errors"

// Errors returned by signature verification and message decryption. Each
// failure mode is a distinct sentinel so handlers can reject with the right
// response instead of guessing from a message string.
var (
	ErrInvalidSignature = errors.New("wechatgo: signature mismatch")
	ErrInvalidBase64    = errors.New("wechatgo: ciphertext is not valid base64")
	ErrInvalidLength    = errors.New("wechatgo: ciphertext has invalid length")
	ErrInvalidPadding   = errors.New("wechatgo: invalid message padding")
	ErrAppIDMismatch    = errors.New("wechatgo: message appid does not match configured appid")
	ErrInvalidAESKey    = errors.New("wechatgo: invalid encoding aes key")
)
