package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Router is a wrapper class that adds the admin token check
type Router struct {
	Base  gin.IRouter
	Token string
}

func (cr *Router) baseExec(c *gin.Context, handler gin.HandlerFunc) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if cr.Token == "" || !found ||
		subtle.ConstantTimeCompare([]byte(token), []byte(cr.Token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access denied"})
		return
	}
	handler(c)
}

func (cr *Router) POST(path string, handler gin.HandlerFunc) {
	cr.Base.POST(path, func(c *gin.Context) {
		cr.baseExec(c, handler)
	})
}

func (cr *Router) GET(path string, handler gin.HandlerFunc) {
	cr.Base.GET(path, func(c *gin.Context) {
		cr.baseExec(c, handler)
	})
}

func (cr *Router) PUT(path string, handler gin.HandlerFunc) {
	cr.Base.PUT(path, func(c *gin.Context) {
		cr.baseExec(c, handler)
	})
}
