package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// gin.Context 中的键
const (
	KeyRequestID = "request_id"
	KeyUserID    = "user_id"
	KeyUserName  = "user_name"
	KeyRoles     = "roles"
	KeyToken     = "token"
	KeyClaims    = "claims"
)

// JWTClaims 平台签发的token
type JWTClaims struct {
	UserID string   `json:"uid"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

func abortUnauthorized(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    code,
		"message": msg,
	})
	c.Abort()
}

// JWTAuth 校验平台token，原始token保存下来转发给平台后端
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// EventSource 不能带header，回退到 query param
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			abortUnauthorized(c, 40100, "Authorization is required")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, 40102, "Invalid or expired token")
			return
		}

		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		if claims.UserID == "" {
			abortUnauthorized(c, 40103, "Invalid token claims")
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUserName, claims.Name)
		c.Set(KeyRoles, claims.Roles)
		c.Set(KeyToken, tokenString)
		c.Set(KeyClaims, claims)
		c.Next()
	}
}

// RequireRole 角色检查中间件，admin 拥有全部角色
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, _ := c.Get(KeyRoles)
		userRoles, _ := roles.([]string)
		for _, r := range userRoles {
			if r == role || r == "admin" {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{
			"code":    40312,
			"message": "Role required: " + role,
		})
		c.Abort()
	}
}

// GetUserID 当前用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(KeyUserID)
}

// GetToken 当前请求的原始token
func GetToken(c *gin.Context) string {
	return c.GetString(KeyToken)
}
