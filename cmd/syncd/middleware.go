package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyMiddleware validates the X-API-Key header (or api_key query
// parameter) against SELECTA_API_KEY, except on excludedPaths.
func APIKeyMiddleware(logger *zap.Logger, excludedPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		currentPath := c.Request.URL.Path
		for _, excluded := range excludedPaths {
			if currentPath == excluded || strings.HasPrefix(currentPath, excluded) {
				c.Next()
				return
			}
		}

		expected := os.Getenv("SELECTA_API_KEY")
		if expected == "" {
			logger.Error("API key not configured in environment")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "api key validation is not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if apiKey == "" {
			logger.Warn("API key missing", zap.String("path", currentPath), zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			c.Abort()
			return
		}

		if apiKey != expected {
			logger.Warn("invalid API key provided", zap.String("path", currentPath), zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
