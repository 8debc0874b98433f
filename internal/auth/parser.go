package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

var ErrUnknownRole = errors.New("token carries an unknown role")

type Claims struct {
	UserID uuid.UUID      `json:"sub"`
	Name   string         `json:"name,omitempty"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) Principal() model.Principal {
	return model.Principal{UserID: c.UserID, Name: c.Name, Role: c.Role}
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	switch claims.Role {
	case model.UserRoleDispatcher, model.UserRoleTechnician, model.UserRoleViewer:
	default:
		return nil, ErrUnknownRole
	}

	return claims, nil
}
