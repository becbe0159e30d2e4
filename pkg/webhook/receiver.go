// Package webhook verifies, decodes and answers inbound callbacks pushed by
// the platform. Every payload is signature-checked before it is handed to
// application code; encrypted payloads are additionally decrypted.
package webhook

import (
	"errors"
	"fmt"

	"github.com/clbanning/mxj/v2"

	"github.com/tidewave/wechatgo/pkg/crypto"
)

// ErrMalformedPayload indicates a request body that is not a well-formed
// platform callback.
var ErrMalformedPayload = errors.New("wechatgo: malformed webhook payload")

// Envelope carries the query parameters the platform attaches to every
// webhook call.
type Envelope struct {
	Signature    string
	Timestamp    string
	Nonce        string
	MsgSignature string
	EchoStr      string
}

// Mode tells whether a payload arrived in plain or encrypted form.
type Mode int

const (
	ModePlain Mode = iota
	ModeEncrypted
)

// Inbound is a verified, decoded webhook payload.
type Inbound struct {
	Mode    Mode
	AppID   string // source appid, encrypted mode only
	Message *Message
}

// Receiver verifies and decodes inbound webhook traffic for one
// application. Pass a nil crypto for accounts running in plain mode; such a
// receiver rejects encrypted payloads instead of guessing at a key.
type Receiver struct {
	token  string
	crypto *crypto.MessageCrypto
}

func NewReceiver(token string, messageCrypto *crypto.MessageCrypto) (*Receiver, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	return &Receiver{
		token:  token,
		crypto: messageCrypto,
	}, nil
}

// VerifyURL handles the GET handshake the platform performs when the
// callback URL is configured. It returns the echostr to send back verbatim.
func (r *Receiver) VerifyURL(env Envelope) (string, error) {
	if env.EchoStr == "" {
		return "", fmt.Errorf("%w: missing echostr", ErrMalformedPayload)
	}

	if env.MsgSignature != "" && r.crypto != nil {
		plaintext, err := r.crypto.DecryptMessage(env.EchoStr, env.MsgSignature, env.Timestamp, env.Nonce)
		if err != nil {
			return "", err
		}
		return string(plaintext), nil
	}

	if err := crypto.VerifySignature(r.token, env.Timestamp, env.Nonce, env.Signature); err != nil {
		return "", err
	}

	return env.EchoStr, nil
}

// Parse verifies and decodes a webhook POST body. The payload mode is
// determined by the presence of an Encrypt element; the result is tagged
// with the mode so handlers can answer in kind.
func (r *Receiver) Parse(env Envelope, body []byte) (*Inbound, error) {
	doc, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if ciphertext := stringAt(doc, "xml.Encrypt"); ciphertext != "" {
		return r.parseEncrypted(env, ciphertext)
	}

	return r.parsePlain(env, doc)
}

func (r *Receiver) parsePlain(env Envelope, doc mxj.Map) (*Inbound, error) {
	if err := crypto.VerifySignature(r.token, env.Timestamp, env.Nonce, env.Signature); err != nil {
		return nil, err
	}

	msg, err := parseMessage(doc)
	if err != nil {
		return nil, err
	}

	return &Inbound{
		Mode:    ModePlain,
		Message: msg,
	}, nil
}

func (r *Receiver) parseEncrypted(env Envelope, ciphertext string) (*Inbound, error) {
	if r.crypto == nil {
		return nil, fmt.Errorf("received an encrypted payload but no encoding aes key is configured")
	}

	plaintext, err := r.crypto.DecryptMessage(ciphertext, env.MsgSignature, env.Timestamp, env.Nonce)
	if err != nil {
		return nil, err
	}

	inner, err := mxj.NewMapXml(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	msg, err := parseMessage(inner)
	if err != nil {
		return nil, err
	}

	return &Inbound{
		Mode:    ModeEncrypted,
		AppID:   r.crypto.AppID(),
		Message: msg,
	}, nil
}

// EncryptReply wraps a rendered reply document for an encrypted-mode
// account. Timestamp and nonce may be empty; fresh values are generated.
func (r *Receiver) EncryptReply(replyXML, timestamp, nonce string) (string, error) {
	if r.crypto == nil {
		return "", fmt.Errorf("cannot encrypt reply without an encoding aes key")
	}

	return r.crypto.EncryptMessage([]byte(replyXML), timestamp, nonce)
}
