package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MrWong99/aurasync/internal/config"
)

const extensionScheme = "chrome-extension://"

// corsMiddleware admits requests without an Origin (curl, server-to-server),
// the configured web origins and, unless disabled, browser extensions.
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: originAllowed(cfg),
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", "traceparent", "tracestate"},
		ExposeHeaders:    []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func originAllowed(cfg config.CORSConfig) func(string) bool {
	exact := make(map[string]bool, len(cfg.AllowOrigins))
	wildcard := false
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
		exact[strings.TrimSuffix(o, "/")] = true
	}
	ext := cfg.ExtensionsAllowed()
	return func(origin string) bool {
		switch {
		case origin == "", wildcard, exact[origin]:
			return true
		case ext && strings.HasPrefix(origin, extensionScheme):
			return true
		}
		return false
	}
}
