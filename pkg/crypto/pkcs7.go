package crypto

import "bytes"

// The platform frames encrypted payloads with a 32-byte padding block, not
// the AES block size. Decoded pad lengths outside [1, padBlockSize] mean the
// ciphertext was corrupted or produced with the wrong key.
const padBlockSize = 32

func pkcs7Pad(data []byte) []byte {
	n := padBlockSize - len(data)%padBlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}

	n := int(data[len(data)-1])
	if n < 1 || n > padBlockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}

	return data[:len(data)-n], nil
}
