package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/myjournalhq/myjournal-api/config"
)

// KeyIssuer produces the bearer string stored in Token.Key and presented by
// clients in the Authorization header. Issuance is deterministic given its
// inputs so the stored key and the handed-out key always agree.
type KeyIssuer interface {
	IssueKey(tokenID, userID string, issuedAt int64) (string, error)
}

// LegacyKeyIssuer preserves the original wire format:
// "{tokenId}/{userId}/{issuedAtSeconds}". The key embeds predictable
// identifiers rather than entropy; keep it only where clients depend on the
// format, and prefer the signed scheme otherwise.
type LegacyKeyIssuer struct{}

func (LegacyKeyIssuer) IssueKey(tokenID, userID string, issuedAt int64) (string, error) {
	return fmt.Sprintf("%s/%s/%d", tokenID, userID, issuedAt), nil
}

// SignedKeyIssuer is the versioned replacement scheme: an HMAC-signed token
// carrying the same identifiers as claims. Keys from this issuer are still
// matched by exact string equality against the stored row; the signature
// only makes them unforgeable.
type SignedKeyIssuer struct {
	secret []byte
	issuer string
}

func NewSignedKeyIssuer(secret, issuer string) (*SignedKeyIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signed token scheme requires a secret")
	}
	return &SignedKeyIssuer{secret: []byte(secret), issuer: issuer}, nil
}

func (s *SignedKeyIssuer) IssueKey(tokenID, userID string, issuedAt int64) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       tokenID,
		Subject:  userID,
		Issuer:   s.issuer,
		IssuedAt: jwt.NewNumericDate(time.Unix(issuedAt, 0)),
	}
	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token key: %w", err)
	}
	return key, nil
}

// NewKeyIssuer selects the issuer for the configured token scheme.
func NewKeyIssuer(cfg config.TokensConfig) (KeyIssuer, error) {
	switch cfg.Scheme {
	case "", "legacy":
		return LegacyKeyIssuer{}, nil
	case "signed":
		return NewSignedKeyIssuer(cfg.Secret, cfg.Issuer)
	default:
		return nil, fmt.Errorf("unknown token scheme %q", cfg.Scheme)
	}
}
