package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, incoming string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if incoming != "" {
		req.Header.Set(Header, incoming)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestMiddlewareGeneratesID(t *testing.T) {
	w, seen := doRequest(t, "")

	id := w.Header().Get(Header)
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	w, seen := doRequest(t, "trace-abc-123")

	assert.Equal(t, "trace-abc-123", w.Header().Get(Header))
	assert.Equal(t, "trace-abc-123", seen)
}

func TestMiddlewareReplacesBadID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "oversized", incoming: strings.Repeat("a", 65)},
		{name: "control characters", incoming: "id\r\nSet-Cookie: x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := doRequest(t, tc.incoming)

			id := w.Header().Get(Header)
			require.NotEmpty(t, id)
			assert.NotEqual(t, tc.incoming, id)
		})
	}
}
