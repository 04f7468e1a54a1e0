package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Jwt struct {
	Secret        string
	Issuer        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type Option func(*Jwt)

func WithIssuer(issuer string) Option {
	return func(j *Jwt) {
		j.Issuer = issuer
	}
}

func WithAccessExpiry(d time.Duration) Option {
	return func(j *Jwt) {
		j.AccessExpiry = d
	}
}

func WithRefreshExpiry(d time.Duration) Option {
	return func(j *Jwt) {
		j.RefreshExpiry = d
	}
}

func NewJwtServiceOptions(secret string, opts ...Option) *Jwt {
	jwtSvc := &Jwt{
		Secret:        secret,
		Issuer:        "simple-cred",
		AccessExpiry:  5 * time.Minute,
		RefreshExpiry: 15 * time.Minute,
	}

	for _, opt := range opts {
		opt(jwtSvc)
	}

	return jwtSvc
}

type Token struct {
	AccessToken  string
	RefreshToken string
}

type Claims struct {
	CustomClaims interface{} `json:"custom_claims,inline"`
	jwt.RegisteredClaims
}

type CredToken struct {
	Token  string
	Expiry time.Time
}

func (j Jwt) CreateTokenStr(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(j.Secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", err
	}
	return ss, nil
}

func (j Jwt) CreateToken(user string) (Token, error) {
	accessToken, err := j.CreateAccessToken(user)
	if err != nil {
		slog.Error("Failed create access token!", "err", err)
		return Token{}, err
	}
	refreshToken, err := j.CreateRefreshToken(user)
	if err != nil {
		slog.Error("Failed create refresh token!", "err", err)
		return Token{}, err
	}
	return Token{
		AccessToken:  accessToken.Token,
		RefreshToken: refreshToken.Token,
	}, nil
}

func (j Jwt) ParseTokenStr(tokenStr string) (*jwt.Token, error) {
	signingKey := []byte(j.Secret)
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		slog.Error("Failed parse JWT string!", "err", err)
		return token, err
	}
	claims := token.Claims.(jwt.MapClaims)
	customClaims := new(Claims)
	err = LoadFromMap(customClaims, claims)
	if err == nil && token.Valid {
		return token, nil
	}
	slog.Error("Failed parse token claims!", "err", err)
	return token, errors.New("failed_parse_token_claims")
}

// Validate parses a token string and reports whether it is currently valid,
// returning its expiry time for idle-timer scheduling.
func (j Jwt) Validate(tokenStr string) (bool, time.Time, error) {
	token, err := j.ParseTokenStr(tokenStr)
	if err != nil {
		return false, time.Time{}, err
	}
	expiry, err := token.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return false, time.Time{}, errors.New("token has no expiration")
	}
	return token.Valid, expiry.Time, nil
}

func LoadFromMap[T any](c *T, m map[string]interface{}) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

func (j Jwt) registeredClaims(expiry time.Duration) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute * 5)),
		Issuer:    j.Issuer,
		Subject:   j.Issuer,
		ID:        uuid.New().String(),
		Audience:  []string{"public"},
	}
}

func (j Jwt) CreateAccessToken(claimData interface{}) (CredToken, error) {
	claims := Claims{claimData, j.registeredClaims(j.AccessExpiry)}
	accessToken, err := j.CreateTokenStr(claims)
	return CredToken{Token: accessToken, Expiry: claims.ExpiresAt.Time}, err
}

func (j Jwt) CreateRefreshToken(claimData interface{}) (CredToken, error) {
	claims := Claims{claimData, j.registeredClaims(j.RefreshExpiry)}
	refreshToken, err := j.CreateTokenStr(claims)
	return CredToken{Token: refreshToken, Expiry: claims.ExpiresAt.Time}, err
}

func (j Jwt) CreatePasswordResetToken(claimData interface{}) (string, error) {
	claims := Claims{claimData, j.registeredClaims(30 * time.Minute)}
	pwdResetToken, err := j.CreateTokenStr(claims)
	return pwdResetToken, err
}
