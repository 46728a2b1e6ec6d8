package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	a "github.com/godswillmedia-source/stylesync-pwa/pkg/auth"
)

// JWTAuth guards the dashboard endpoints. Sessions are issued by the
// external auth collaborator; here we only validate and pull the owner
// id out of the claims.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tok := strings.TrimPrefix(h, "Bearer ")
		claims, err := a.ParseValidate(tok)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("sub", claims.Sub)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	v, _ := c.Get("sub")
	s, _ := v.(string)
	return s
}
