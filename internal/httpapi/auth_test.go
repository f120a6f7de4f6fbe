package httpapi

import (
	"net/http"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/service"
)

func TestIssueAndParseToken(t *testing.T) {
	auth := NewAuthenticator(testSecret, time.Hour)
	token, expiresAt, err := auth.IssueToken(domain.Actor{ShopkeeperID: "shop-1", Role: service.RoleStaff})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %s", expiresAt)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.ShopkeeperID != "shop-1" || actor.Role != service.RoleStaff {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejects(t *testing.T) {
	auth := NewAuthenticator(testSecret, time.Hour)
	sign := func(method jwtlib.SigningMethod, secret string, claims posClaims) string {
		t.Helper()
		signed, err := jwtlib.NewWithClaims(method, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}
	valid := func() posClaims {
		return posClaims{
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject:   "shop-1",
				ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: service.RoleUser,
		}
	}

	expired := valid()
	expired.ExpiresAt = jwtlib.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	badRole := valid()
	badRole.Role = "root"
	noSubject := valid()
	noSubject.Subject = ""

	cases := map[string]string{
		"wrong secret": sign(jwtlib.SigningMethodHS256, "another-secret-another-secret-000", valid()),
		"other alg":    sign(jwtlib.SigningMethodHS512, testSecret, valid()),
		"expired":      sign(jwtlib.SigningMethodHS256, testSecret, expired),
		"no expiry":    sign(jwtlib.SigningMethodHS256, testSecret, noExpiry),
		"unknown role": sign(jwtlib.SigningMethodHS256, testSecret, badRole),
		"no subject":   sign(jwtlib.SigningMethodHS256, testSecret, noSubject),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		if _, err := auth.ParseToken(token); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	api := newTestAPI(t)

	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic", "", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	if res := do(t, api, http.MethodGet, "/api/v1/inventory/shop-basic", "bogus", nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.Code)
	}
}
