package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims 是會話憑證所攜帶的宣告
// Role 在簽發時從使用者文件複製，核心信任此宣告即為使用者目前的角色
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer 負責簽發與驗證 HS256 會話憑證
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue 為指定使用者簽發一個新的會話憑證
func (i *TokenIssuer) Issue(userID uuid.UUID, name, role string) (string, error) {
	const op = "Issue"
	now := i.now()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to sign session token, err=%w", op, err)
	}
	return signed, nil
}

// ParseAndValidate 驗證會話憑證並取出其中的宣告
func (i *TokenIssuer) ParseAndValidate(tokenString string) (*Claims, error) {
	const op = "ParseAndValidate"
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] err=%w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("[%s] token is invalid", op)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("[%s] token claims are invalid", op)
	}
	return claims, nil
}
