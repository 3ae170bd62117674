package token

import (
	"fmt"
	"time"

	"github.com/o1egl/paseto"
	"golang.org/x/crypto/chacha20poly1305"
)

// Issuer is written to the footer of every token so keys shared with other services
// cannot be used to act on receipts.
const Issuer = "welfare-receipts"

type PasetoMaker struct {
	paseto       *paseto.V2
	symmetricKey []byte
}

func NewPasetoMaker(symmetricKey string) (Maker, error) {
	if len(symmetricKey) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: must be exactly %d characters", chacha20poly1305.KeySize)
	}
	return &PasetoMaker{
		paseto:       paseto.NewV2(),
		symmetricKey: []byte(symmetricKey),
	}, nil
}

// CreateToken issues a local v2 token for actor, valid for duration
func (maker *PasetoMaker) CreateToken(actor Actor, duration time.Duration) (string, error) {
	payload, err := NewPayload(actor, duration)
	if err != nil {
		return "", fmt.Errorf("failed to create token payload: %w", err)
	}

	token, err := maker.paseto.Encrypt(maker.symmetricKey, payload, Issuer)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}
	return token, nil
}

func (maker *PasetoMaker) VerifyToken(token string) (*Payload, error) {
	payload := &Payload{}
	var footer string

	if err := maker.paseto.Decrypt(token, maker.symmetricKey, payload, &footer); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if footer != Issuer {
		return nil, ErrForeignToken
	}
	if err := payload.Valid(); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return payload, nil
}
