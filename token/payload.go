package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"welfare-receipts-backend/utils"

	"github.com/google/uuid"
)

var (
	ErrExpired      = errors.New("token has expired")
	ErrUnknownRole  = errors.New("unknown workflow role")
	ErrEmptyActor   = errors.New("identity cannot be empty")
	ErrForeignToken = errors.New("token was not issued by this service")
)

// Payload is the decrypted token body
type Payload struct {
	ID        uuid.UUID `json:"id"`
	Identity  string    `json:"identity"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiredAt time.Time `json:"expired_at"`
}

func NewPayload(actor Actor, duration time.Duration) (*Payload, error) {
	identity := strings.TrimSpace(actor.Identity)
	if identity == "" {
		return nil, ErrEmptyActor
	}
	if !actor.Role.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, actor.Role)
	}
	if duration <= 0 {
		return nil, errors.New("duration must be positive")
	}

	tokenID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	issuedAt := time.Now().In(utils.DateLocation)
	return &Payload{
		ID:        tokenID,
		Identity:  identity,
		Role:      actor.Role,
		IssuedAt:  issuedAt,
		ExpiredAt: issuedAt.Add(duration),
	}, nil
}

func (p *Payload) Valid() error {
	if time.Now().In(utils.DateLocation).After(p.ExpiredAt) {
		return ErrExpired
	}
	if !p.Role.IsValid() {
		return ErrUnknownRole
	}
	return nil
}

func (p *Payload) Actor() Actor {
	return Actor{Identity: p.Identity, Role: p.Role}
}

func (p *Payload) String() string {
	return fmt.Sprintf("%s as %s (token %s, expires %s)", p.Identity, p.Role, p.ID, p.ExpiredAt.Format(time.RFC3339))
}
