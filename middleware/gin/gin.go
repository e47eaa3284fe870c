// Package gin adapts the defense middleware to the Gin framework.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	defense "github.com/jassus213/go-defense"
	"github.com/jassus213/go-defense/middleware"
)

// Defense creates a new Gin middleware handler.
//
// It evaluates the defense built for each request's key and aborts the
// request through the Blocked handler when it fires. Otherwise the chain
// runs and the final response status is fed to the tracked condition. The
// behavior of the middleware can be customized by passing functional
// options, such as changing how a client is identified (WithKeyFunc) or
// which responses are counted (WithCountWhen).
//
// It panics when defenseFor is nil.
//
// Example:
//
//	router := gin.Default()
//	router.POST("/login", gin.Defense(lockoutFor,
//	    middleware.WithTrack[string](failuresFor),
//	    middleware.WithCountWhen[string](func(status int) bool { return status == http.StatusUnauthorized }),
//	), loginHandler)
func Defense[T any](defenseFor func(key string) defense.Defender[T], options ...middleware.Option[T]) gin.HandlerFunc {
	cfg := middleware.NewConfig(defenseFor, options...)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return func(c *gin.Context) {
		key, err := cfg.KeyFunc(c.Request)
		if err != nil {
			cfg.Logger.Errorf("Failed to extract key: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		result, fired, err := cfg.Evaluate(c.Request, key)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if fired {
			cfg.Blocked(c.Writer, c.Request, result)
			c.Abort()
			return
		}

		c.Next()

		cfg.Record(c.Request, key, c.Writer.Status())
	}
}
