package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	encodingAESKeyLength = 43
	randomPrefixLength   = 16
	lengthFieldSize      = 4
)

// MessageCrypto encrypts and decrypts webhook message bodies for one
// application. The EncodingAESKey is the 43-character base64 key issued by
// the platform; it decodes to a 32-byte AES-256 key whose first 16 bytes
// double as the CBC initialization vector.
//
// Encrypted payloads carry a 16-byte random prefix, a 4-byte big-endian
// plaintext length, the plaintext itself and the source appid, padded to
// 32 bytes before encryption.
type MessageCrypto struct {
	token string
	appID string
	key   []byte
}

// NewMessageCrypto validates the key material and returns a ready crypto.
// Configuration problems are reported here, not on first use.
func NewMessageCrypto(token, encodingAESKey, appID string) (*MessageCrypto, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if appID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if len(encodingAESKey) != encodingAESKeyLength {
		return nil, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidAESKey, encodingAESKeyLength, len(encodingAESKey))
	}

	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAESKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: decodes to %d bytes, expected 32", ErrInvalidAESKey, len(key))
	}

	return &MessageCrypto{
		token: token,
		appID: appID,
		key:   key,
	}, nil
}

// Encrypt encrypts a plaintext message body and returns it base64-encoded.
func (c *MessageCrypto) Encrypt(plaintext []byte) (string, error) {
	prefix := make([]byte, randomPrefixLength)
	if _, err := rand.Read(prefix); err != nil {
		return "", fmt.Errorf("failed to generate random prefix: %w", err)
	}

	buf := make([]byte, 0, randomPrefixLength+lengthFieldSize+len(plaintext)+len(c.appID)+padBlockSize)
	buf = append(buf, prefix...)

	var length [lengthFieldSize]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(plaintext)))
	buf = append(buf, length[:]...)
	buf = append(buf, plaintext...)
	buf = append(buf, c.appID...)
	buf = pkcs7Pad(buf)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	mode := cipher.NewCBCEncrypter(block, c.key[:aes.BlockSize])
	mode.CryptBlocks(buf, buf)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt decrypts a base64 ciphertext and returns the plaintext message
// body and the appid embedded by the sender. Decryption fails with a
// distinct error for bad base64, bad length, bad padding and appid mismatch;
// it never returns truncated plaintext.
func (c *MessageCrypto) Decrypt(ciphertext string) ([]byte, string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, "", fmt.Errorf("%w: %d bytes is not a multiple of the block size", ErrInvalidLength, len(raw))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create cipher: %w", err)
	}

	mode := cipher.NewCBCDecrypter(block, c.key[:aes.BlockSize])
	mode.CryptBlocks(raw, raw)

	data, err := pkcs7Unpad(raw)
	if err != nil {
		return nil, "", err
	}
	if len(data) < randomPrefixLength+lengthFieldSize {
		return nil, "", fmt.Errorf("%w: message shorter than header", ErrInvalidLength)
	}

	msgLen := binary.BigEndian.Uint32(data[randomPrefixLength : randomPrefixLength+lengthFieldSize])
	rest := data[randomPrefixLength+lengthFieldSize:]
	if int64(msgLen) > int64(len(rest)) {
		return nil, "", fmt.Errorf("%w: length field %d exceeds payload size %d", ErrInvalidLength, msgLen, len(rest))
	}

	plaintext := rest[:msgLen]
	appID := string(rest[msgLen:])
	if appID != c.appID {
		return nil, "", fmt.Errorf("%w: got %q", ErrAppIDMismatch, appID)
	}

	return plaintext, appID, nil
}

type cdata struct {
	Value string `xml:",cdata"`
}

// EncryptedEnvelope is the XML document the platform expects around an
// encrypted reply.
type EncryptedEnvelope struct {
	XMLName      xml.Name `xml:"xml"`
	Encrypt      cdata    `xml:"Encrypt"`
	MsgSignature cdata    `xml:"MsgSignature"`
	Timestamp    string   `xml:"TimeStamp"`
	Nonce        cdata    `xml:"Nonce"`
}

// EncryptMessage encrypts a reply body and wraps it in the signed envelope
// XML the platform expects. Empty timestamp or nonce are filled in with the
// current time and a random nonce.
func (c *MessageCrypto) EncryptMessage(plaintext []byte, timestamp, nonce string) (string, error) {
	encrypted, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}

	if timestamp == "" {
		timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	}
	if nonce == "" {
		nonce = uuid.NewString()
	}

	envelope := EncryptedEnvelope{
		Encrypt:      cdata{encrypted},
		MsgSignature: cdata{Signature(c.token, timestamp, nonce, encrypted)},
		Timestamp:    timestamp,
		Nonce:        cdata{nonce},
	}

	out, err := xml.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to render encrypted envelope: %w", err)
	}

	return string(out), nil
}

// DecryptMessage verifies the message signature over a received ciphertext
// and decrypts it. This is the entry point webhook handlers should use for
// encrypted-mode callbacks: an unverified payload is never decrypted.
func (c *MessageCrypto) DecryptMessage(ciphertext, msgSignature, timestamp, nonce string) ([]byte, error) {
	if err := VerifySignature(c.token, timestamp, nonce, msgSignature, ciphertext); err != nil {
		return nil, err
	}

	plaintext, _, err := c.Decrypt(ciphertext)
	return plaintext, err
}

// AppID returns the appid this crypto was configured for.
func (c *MessageCrypto) AppID() string {
	return c.appID
}
