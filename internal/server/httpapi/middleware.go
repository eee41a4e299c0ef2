package httpapi

import (
	"strings"
	"time"

	"github.com/engineerhub/engineerhub/internal/common"
	"github.com/engineerhub/engineerhub/internal/logging"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Authenticator verifies bearer tokens.
type Authenticator interface {
	Authenticate(token string) (models.Principal, error)
}

// requireAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the caller's principal in the context.
func requireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		if header == "" {
			respondError(c, common.NewError(common.ErrUnauthorized, "authorization header is required"))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			respondError(c, common.NewError(common.ErrUnauthorized, "authorization header format must be Bearer {token}"))
			return
		}

		p, err := a.Authenticate(strings.TrimSpace(token))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func principal(c *gin.Context) models.Principal {
	p, _ := c.Get(principalKey)
	pr, _ := p.(models.Principal)
	return pr
}

// requestLogger logs one line per request.
func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if p, ok := c.Get(principalKey); ok {
			args = append(args, "user_id", p.(models.Principal).UserID)
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
			log.Error(c.Request.Context(), "request failed", args...)
			return
		}
		log.Info(c.Request.Context(), "request", args...)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", common.AuthorizationHeaderName},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}
