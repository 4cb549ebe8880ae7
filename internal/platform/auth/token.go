package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// SignToken はHS256のBearerトークンを発行する。sub には学生のULID
// （管理者の場合はユーザー名）を入れる。
func SignToken(secret []byte, sub, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}
