package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"preview-lab/domain"
	"preview-lab/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates handshake bearer tokens against the shared
// signing secret. The secret comes from configuration, never from code.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret []byte, issuer string) *Authenticator {
	return &Authenticator{secret: secret, issuer: issuer}
}

// GenerateToken creates a signed JWT for a specific subject.
// The service itself never issues tokens; this exists for tests and tooling.
func (a *Authenticator) GenerateToken(subjectID, email string, role domain.Role,
	duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		SubjectID: subjectID,
		Email:     email,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    a.issuer,
		},
	}

	// HS256 (HMAC with SHA256), signed with the shared secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT
// string, and maps its claims onto an Identity bound to the connection.
func (a *Authenticator) ValidateToken(tokenString, connectionID string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, errors.ErrAuthentication
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, errors.ErrAuthentication
	}
	if claims.SubjectID == "" || claims.Email == "" {
		return domain.Identity{}, errors.ErrAuthentication
	}

	role := domain.Role(claims.Role)
	if role == "" {
		role = domain.RoleUser
	}

	return domain.Identity{
		SubjectID:    claims.SubjectID,
		Email:        claims.Email,
		Role:         role,
		ConnectionID: connectionID,
	}, nil
}
