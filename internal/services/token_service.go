package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type TokenClaims struct {
	Username string `json:"username"`
	UserID   uint   `json:"uid"`
	jwt.RegisteredClaims
}

type TokenService struct {
	tokenRepo *repository.TokenRepository
	userRepo  *repository.UserRepository
	jwtSecret string
	now       func() time.Time
}

func NewTokenService(tokenRepo *repository.TokenRepository, userRepo *repository.UserRepository, jwtSecret string) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// GenerateToken signs a token for the user and stores it so it can be listed
// and revoked.
func (s *TokenService) GenerateToken(username, name string, expiresIn time.Duration) (string, *models.APIToken, error) {
	if expiresIn <= 0 {
		return "", nil, validationf("token lifetime must be positive")
	}
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, fmt.Errorf("%w %q", ErrUserNotFound, username)
	}
	if !user.Active {
		return "", nil, fmt.Errorf("%w: user %q is inactive", ErrForbidden, username)
	}

	issued := s.now()
	expires := issued.Add(expiresIn)
	claims := TokenClaims{
		Username: user.Username,
		UserID:   user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(issued),
			Issuer:    "fieldops",
			Subject:   user.Username,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", nil, err
	}

	apiToken := &models.APIToken{
		UserID:    user.ID,
		Name:      name,
		Token:     tokenString,
		ExpiresAt: expires,
	}
	if err := s.tokenRepo.Create(apiToken); err != nil {
		return "", nil, err
	}

	return tokenString, apiToken, nil
}

// Authenticate checks the token signature, that it has not been revoked and
// that its user is still active, and returns that user.
func (s *TokenService) Authenticate(tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if _, ok := token.Claims.(*TokenClaims); !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	dbToken, err := s.tokenRepo.FindActive(tokenString, s.now())
	if err != nil {
		return nil, err
	}
	if dbToken == nil {
		return nil, ErrInvalidToken
	}
	if !dbToken.User.Active {
		return nil, ErrInvalidToken
	}

	return &dbToken.User, nil
}

func (s *TokenService) ListUserTokens(userID uint) ([]models.APIToken, error) {
	return s.tokenRepo.FindByUserID(userID)
}

func (s *TokenService) DeleteToken(tokenID uint, userID uint) error {
	ok, err := s.tokenRepo.Delete(tokenID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundf("token %d", tokenID)
	}
	return nil
}

func (s *TokenService) PurgeExpired() (int64, error) {
	return s.tokenRepo.DeleteExpired(s.now())
}
