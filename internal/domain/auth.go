package domain

import "github.com/golang-jwt/jwt/v5"

// CustomClaims — полезная нагрузка RS256-токена для доступа к API агрегатора.
// Токены выпускает внешняя консоль платформы; мы их только проверяем.
type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "dashboard.read": true
	jwt.RegisteredClaims
}
