// Пакет auth — выпуск и проверка токенов доступа SIGESCON
// и хранилище отозванных токенов.
//
// Токены подписываются HS256 общим секретом. Профиль пользователя
// зашит в claim perfil на момент входа: смена профиля вступает в силу
// только после повторного входа.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken — токен не прошёл проверку.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// Claims — claims токена SIGESCON.
type Claims struct {
	jwt.RegisteredClaims
	// Perfil — имя профиля пользователя (Administrador, Gestor, Fiscal).
	Perfil string `json:"perfil"`
}

// UserID возвращает id пользователя из sub.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: некорректный sub %q", ErrInvalidToken, c.Subject)
	}
	return id, nil
}

// TokenManager выпускает и проверяет токены.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт TokenManager.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue выпускает токен для пользователя. Возвращает строку токена и claims.
func (m *TokenManager) Issue(userID int64, perfil string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Perfil: perfil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, claims, nil
}

// Parse проверяет подпись, срок действия и issuer токена.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: отсутствует jti", ErrInvalidToken)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
