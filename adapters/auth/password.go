package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength 為密碼的最小長度
const MinPasswordLength = 6

// HashPassword 以 bcrypt 雜湊明文密碼
func HashPassword(password string) (string, error) {
	const op = "HashPassword"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to hash password, err=%w", op, err)
	}
	return string(hash), nil
}

// ComparePassword 比對明文密碼與雜湊是否一致
func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
