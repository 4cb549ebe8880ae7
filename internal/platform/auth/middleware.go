package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxStudentULIDKey = "student_ulid"
	CtxStudentIDKey   = "student_id"
	CtxRoleKey        = "role"
)

// StudentResolver は sub クレームを学生レコードに解決する
type StudentResolver interface {
	GetByULID(ctx context.Context, ulid string) (*Student, error)
}

// RequireAuth: Authorization: Bearer <token> を検証して context に識別情報を詰める。
// 学生トークンの場合は sub が有効な学生レコードを指すことまで確認する。
func RequireAuth(secret []byte, students StudentResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		parts := strings.SplitN(h, " ", 2)
		if h == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortUnauthorized(c, "Not authorized, no token provided")
			return
		}
		tokenStr := strings.TrimSpace(parts[1])

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃とか回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "Token expired. Please login again.")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}
		if token == nil || !token.Valid {
			abortUnauthorized(c, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "Invalid token")
			return
		}
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if sub == "" {
			abortUnauthorized(c, "Invalid token")
			return
		}

		// 管理者トークンは学生レコードを持たない
		if role == RoleAdmin {
			c.Set(CtxRoleKey, role)
			c.Next()
			return
		}

		st, err := students.GetByULID(c.Request.Context(), sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
			return
		}
		if st == nil {
			abortUnauthorized(c, "Student not found")
			return
		}
		if !st.IsActive {
			abortUnauthorized(c, "Account is deactivated. Please contact admin.")
			return
		}

		c.Set(CtxStudentULIDKey, st.StudentULID)
		c.Set(CtxStudentIDKey, st.StudentID)
		c.Set(CtxRoleKey, RoleStudent)
		c.Next()
	}
}

// RequireRole: 管理者専用ルートなどに追加する
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(CtxRoleKey)
		role, _ := v.(string)
		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Forbidden"})
			return
		}
		if _, allowed := roleSet[role]; !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Forbidden"})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
}

// StudentID は RequireAuth 済みハンドラから呼び出し元学生のDB IDを取り出す
func StudentID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxStudentIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// StudentULID は RequireAuth 済みハンドラから呼び出し元学生のULIDを取り出す
func StudentULID(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxStudentULIDKey)
	if !ok {
		return "", false
	}
	u, ok := v.(string)
	return u, ok
}
