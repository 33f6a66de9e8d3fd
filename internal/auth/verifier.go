package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

const bearerPrefix = "Bearer "

// KeyResolver resolves a key id to the signing key, refreshing the underlying
// set at most once when the id is unknown.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier validates bearer tokens against a remote signing key set.
// It never trusts unverified claim contents: the unverified decode exists only
// to read the key id from the header.
type Verifier struct {
	keys     KeyResolver
	issuer   string
	audience string
}

func NewVerifier(keys KeyResolver, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify implements domain.TokenVerifier.
//
// The returned claim carries IsAuthenticated=false and the internal reason in
// Error on failure; callers must map any failure to a generic authentication
// error and keep the reason in logs only.
func (v *Verifier) Verify(ctx context.Context, bearer string) (domain.IdentityClaim, error) {
	claim, err := v.verify(ctx, bearer)
	if err != nil {
		metrics.AuthVerificationsTotal.WithLabelValues("failure").Inc()
		return domain.IdentityClaim{IsAuthenticated: false, Error: err.Error()}, err
	}
	metrics.AuthVerificationsTotal.WithLabelValues("success").Inc()
	return claim, nil
}

func (v *Verifier) verify(ctx context.Context, bearer string) (domain.IdentityClaim, error) {
	if !strings.HasPrefix(bearer, bearerPrefix) {
		return domain.IdentityClaim{}, domain.ErrUnauthenticated
	}
	tokenString := strings.TrimPrefix(bearer, bearerPrefix)

	kid, err := unverifiedKeyID(tokenString)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	key, err := v.keys.Resolve(ctx, kid)
	if err != nil {
		return domain.IdentityClaim{}, err
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.IdentityClaim{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	return extractIdentity(claims)
}

// unverifiedKeyID reads the kid from the token header without verifying the
// signature. Nothing else from this decode may be used.
func unverifiedKeyID(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMalformedToken, err)
	}
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return "", domain.ErrMalformedToken
	}
	return kid, nil
}

// extractIdentity pulls subject, username and email out of a verified claim
// set, mirroring the identity provider's claim layout.
func extractIdentity(claims jwt.MapClaims) (domain.IdentityClaim, error) {
	sub := stringClaim(claims, "sub")
	cognitoUsername := stringClaim(claims, "cognito:username")
	email := stringClaim(claims, "email")

	userID := sub
	if userID == "" {
		userID = cognitoUsername
	}

	username := cognitoUsername
	if username == "" {
		username = stringClaim(claims, "preferred_username")
	}
	if username == "" {
		username = sub
	}

	if userID == "" || email == "" || username == "" {
		return domain.IdentityClaim{}, domain.ErrIncompleteIdentity
	}

	return domain.IdentityClaim{
		IsAuthenticated: true,
		UserID:          userID,
		Username:        username,
		Email:           email,
	}, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}
