package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrDisabled           = errors.New("api authentication is not configured")
)

const issuer = "mt5-bridge"

// Claims представляет JWT claims оператора API
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Service управляет токенами операторов
type Service struct {
	jwtSecret  []byte
	tokenTTL   time.Duration
	apiKeyHash []byte
}

// NewService создает auth сервис. apiKeyHash - bcrypt хеш API ключа
// оператора, пустое значение отключает выдачу токенов по ключу
func NewService(jwtSecret string, tokenTTL time.Duration, apiKeyHash string) *Service {
	return &Service{
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		apiKeyHash: []byte(apiKeyHash),
	}
}

// Enabled сообщает, включена ли проверка токенов
func (s *Service) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// HashKey хеширует API ключ для API_KEY_HASH
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyKey проверяет API ключ по настроенному хешу
func (s *Service) VerifyKey(key string) error {
	if len(s.apiKeyHash) == 0 || !s.Enabled() {
		return ErrDisabled
	}

	if err := bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(key)); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// GenerateToken создает JWT токен для operator
func (s *Service) GenerateToken(operator string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrDisabled
	}

	now := time.Now()
	expires := now.Add(s.tokenTTL)

	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expires, nil
}

// ValidateToken проверяет JWT токен и возвращает claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}

		return s.jwtSecret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
