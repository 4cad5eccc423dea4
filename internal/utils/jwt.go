package utils

import (
	"time"

	"github.com/golang-jwt/jwt"

	"debate_live/internal/models"
)

var jwtSecret = []byte("your_jwt_secret") // 在實際應用中，這應該是一個環境變量

type Claims struct {
	UserID uint          `json:"user_id"`
	Stance models.Stance `json:"stance"`
	jwt.StandardClaims
}

// GenerateToken 生成一個新的 JWT token，帶上用戶 ID 與註冊時聲明的立場
func GenerateToken(userID uint, stance models.Stance) (string, error) {
	nowTime := time.Now()
	expireTime := nowTime.Add(240 * time.Hour)

	claims := Claims{
		UserID: userID,
		Stance: stance,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expireTime.Unix(),
			IssuedAt:  nowTime.Unix(),
		},
	}

	tokenClaims := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenClaims.SignedString(jwtSecret)
}

// ParseToken 解析和驗證 JWT token
func ParseToken(token string) (*Claims, error) {
	tokenClaims, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if tokenClaims != nil {
		if claims, ok := tokenClaims.Claims.(*Claims); ok && tokenClaims.Valid {
			return claims, nil
		}
	}

	return nil, err
}
