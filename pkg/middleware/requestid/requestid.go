package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request ID between the client, the gateway and the logs.
const Header = "X-Request-ID"

const contextKey = "request_id"

const maxLen = 64

// Middleware assigns a request ID to each incoming HTTP request. A caller
// may supply its own via the header so the ID survives hops through a
// proxy; anything oversized or non-printable is replaced rather than echoed
// back into responses and log lines.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := sanitize(c.GetHeader(Header))
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(Header, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func sanitize(raw string) string {
	if raw == "" || len(raw) > maxLen {
		return ""
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return ""
		}
	}
	return raw
}
