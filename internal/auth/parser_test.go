package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestParserAcceptsKnownRoles(t *testing.T) {
	p := NewParser("secret")
	userID := uuid.New()
	token := sign(t, jwt.SigningMethodHS256, []byte("secret"), Claims{
		UserID: userID,
		Name:   "Dispatch Desk",
		Role:   model.UserRoleDispatcher,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := p.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	principal := claims.Principal()
	if principal.UserID != userID || !principal.IsDispatcher() || principal.Name != "Dispatch Desk" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestParserRejectsBadTokens(t *testing.T) {
	p := NewParser("secret")

	expired := sign(t, jwt.SigningMethodHS256, []byte("secret"), Claims{
		UserID: uuid.New(),
		Role:   model.UserRoleViewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	if _, err := p.Parse(expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expired token error = %v", err)
	}

	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), Claims{UserID: uuid.New(), Role: model.UserRoleViewer})
	if _, err := p.Parse(wrongKey); err == nil {
		t.Fatal("token signed with another key was accepted")
	}

	unknownRole := sign(t, jwt.SigningMethodHS256, []byte("secret"), Claims{UserID: uuid.New(), Role: "ADMIN"})
	if _, err := p.Parse(unknownRole); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("unknown role error = %v", err)
	}

	hs512 := sign(t, jwt.SigningMethodHS512, []byte("secret"), Claims{UserID: uuid.New(), Role: model.UserRoleViewer})
	if _, err := p.Parse(hs512); err == nil {
		t.Fatal("unexpected signing method was accepted")
	}
}
