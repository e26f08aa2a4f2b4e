package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nurpe/lease-contracts/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID   int64      `json:"user_id"`
	Role     model.Role `json:"role"`
	AgencyID *int64     `json:"agency_id,omitempty"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == 0 || claims.Role == "" {
		return model.Principal{}, fmt.Errorf("%w: missing user or role", ErrInvalidToken)
	}
	return model.Principal{
		UserID:   claims.UserID,
		Role:     model.Role(strings.ToUpper(string(claims.Role))),
		AgencyID: claims.AgencyID,
	}, nil
}

// Sign issues a token for the principal; used by tests and local tooling.
func (p *Parser) Sign(principal model.Principal, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           principal.UserID,
		Role:             principal.Role,
		AgencyID:         principal.AgencyID,
		RegisteredClaims: claims,
	})
	return token.SignedString(p.secret)
}
