package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims JWT 声明
// 本服务只消费已签发的身份令牌，签发由外部认证服务负责。
type JWTClaims struct {
	UserID string `json:"user_id"` // UUID
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager JWT 管理器（仅验证）
type JWTManager struct {
	secretKey []byte
	issuer    string
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(secretKey, issuer string) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

// VerifyAccessToken 验证 Access Token
func (m *JWTManager) VerifyAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("unexpected token issuer")
	}

	return claims, nil
}

// ExtractTokenFromHeader 从 Authorization header 提取 token
// 格式：Authorization: Bearer <token>
func ExtractTokenFromHeader(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) {
		return "", fmt.Errorf("invalid authorization header")
	}

	if authHeader[:len(bearerPrefix)] != bearerPrefix {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return authHeader[len(bearerPrefix):], nil
}
