// Package httpx holds the gin middleware and error rendering shared by every
// route.
package httpx

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/sky-takeout/internal/actor"
)

const actorKey = "actor"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get("rid")
		uid, _ := c.Get(actorKey)
		log.Printf("[http] rid=%v actor=%v %s %s status=%d dur=%s",
			rid, uid, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Actor rejects requests without a resolvable actor and stores the id for
// ActorID.
func Actor(r actor.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := r.Resolve(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

// ActorID returns the id set by Actor, or 0 outside it.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}
