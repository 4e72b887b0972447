package utils

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControl sets the cache-control header of a route. Zero disables caching
func CacheControl(maxAge time.Duration) gin.HandlerFunc {
	value := "no-cache"
	if maxAge > 0 {
		value = "private, max-age=" + strconv.Itoa(int(maxAge/time.Second))
	}
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
