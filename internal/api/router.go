package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter registers every route on a new gin engine.
func NewRouter(h *Handler, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(h.Logger), gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.GetHealth)

	api := r.Group("/api", h.requireUser)
	{
		api.GET("/shopping-list", h.GenerateShoppingList)
		api.GET("/shopping-list/saved", h.GetSavedList)
		api.PUT("/shopping-list/checked", h.SaveChecked)
		api.POST("/shopping-list/recipes", h.AddRecipe)
		api.POST("/shopping-list/items", h.AddItem)
		api.DELETE("/shopping-list/items", h.RemoveItem)
		api.DELETE("/shopping-list/custom", h.ClearCustomItems)

		api.POST("/recipes/clip", h.ClipRecipe)
		api.GET("/recipes/:id", h.GetRecipe)

		api.POST("/meal-plans", h.AddMeal)
		api.GET("/meal-plans", h.ListMealPlans)
	}
	return r
}

var errUnauthorized = errors.New("missing or invalid bearer token")

// requireUser resolves the bearer token to an existing user.
func (h *Handler) requireUser(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" || h.Tokens == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized.Error()})
		return
	}

	userID, err := h.Tokens.Verify(strings.TrimSpace(raw))
	if err != nil {
		h.Logger.Debug("rejected bearer token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized.Error()})
		return
	}

	u, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		c.Abort()
		return
	}
	if u == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	c.Set(userIDKey, u.ID)
	c.Next()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
