package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrovia/agrovia-api/internal/container"
	"github.com/agrovia/agrovia-api/internal/infrastructure/cache"
	handlers "github.com/agrovia/agrovia-api/internal/interface/http"
	"github.com/agrovia/agrovia-api/internal/interface/middleware"
	"github.com/agrovia/agrovia-api/pkg/helpers"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	Cache   *cache.AuthCache
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, c *cache.AuthCache, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, Cache: c, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/register", registerLimiter, m.Handler.Register)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/refresh", refreshLimiter, m.Handler.Refresh)

	// Protected endpoints require a verified access token and a live session
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Cache, m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/auth/logout", m.Handler.Logout)
		auth.POST("/auth/password", m.Handler.ChangePassword)
		auth.GET("/auth/session", m.Handler.Session)
	}
}
