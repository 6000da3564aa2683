package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/valiyev-777/Speaking/internal/config"
	jwtutil "github.com/valiyev-777/Speaking/pkg/jwt"
	"github.com/valiyev-777/Speaking/pkg/metrics"
)

// Auth JWT 인증 미들웨어.
// Authorization 헤더 우선, 없으면 token 쿼리 파라미터 허용
// (브라우저 WebSocket API는 커스텀 헤더를 못 보냄)
func Auth(cfg *config.Config) gin.HandlerFunc {
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	return func(c *gin.Context) {
		token := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			// "Bearer <token>" 형식 파싱
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				metrics.AuthFailures.WithLabelValues("malformed_header").Inc()
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid authorization header format",
				})
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			token = c.Query("token")
		}

		if token == "" {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization required",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.Verify(token)
		if err != nil {
			metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		metrics.AuthSuccess.Inc()

		// 검증 성공 - 사용자 정보를 context에 저장
		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("email", claims.Email)

		c.Next()
	}
}
