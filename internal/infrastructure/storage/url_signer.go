package storage

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid file token")
	ErrExpiredToken = errors.New("file token has expired")
	ErrKeyMismatch  = errors.New("file token does not grant this key")
)

const fileTokenIssuer = "backoffice-media"

// FileClaims grants read access to a single storage key
type FileClaims struct {
	jwt.RegisteredClaims
	Key string `json:"key"`
}

// URLSigner issues and checks the tokens of local file URLs
type URLSigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewURLSigner creates a signer producing {baseURL}/media/files/{key}?token=...
func NewURLSigner(secret, baseURL string) (*URLSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("signing secret must be at least 16 characters")
	}
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Sign returns a URL for key valid for ttl
func (s *URLSigner) Sign(key string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &FileClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    fileTokenIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Key: key,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/media/files/" + escapeKey(key) + "?token=" + url.QueryEscape(token), expiresAt, nil
}

// Verify checks that token is valid and was issued for key
func (s *URLSigner) Verify(token, key string) error {
	parsed, err := jwt.ParseWithClaims(token, &FileClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(fileTokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*FileClaims)
	if !ok || !parsed.Valid {
		return ErrInvalidToken
	}
	if claims.Key != key {
		return ErrKeyMismatch
	}
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
