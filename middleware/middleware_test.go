package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRequestID(t *testing.T) {
	r := gin.New()
	m := NewManager()
	m.Add(RequestIDMiddleware())
	m.Add(AccessLog())
	assert.Equal(t, 2, m.Len())
	r.Use(m.Handlers()...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Body.String())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestFail(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{errs.ErrArgs.WrapMsg("bad"), http.StatusBadRequest, errs.ArgsError},
		{errs.ErrTokenExpired.Wrap(), http.StatusUnauthorized, errs.TokenExpiredError},
		{errs.ErrRecordNotFound.Wrap(), http.StatusNotFound, errs.RecordNotFoundError},
		{errs.ErrStoreUnavailable.Wrap(), http.StatusServiceUnavailable, errs.StoreUnavailableError},
		{assert.AnError, http.StatusInternalServerError, errs.ServerInternalError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		Fail(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body errs.CodeError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
	}
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"http://localhost:3000/", "https://chat.example.com"})

	req := func(origin, host string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/socket", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("", "api.example.com")))
	assert.True(t, check(req("http://localhost:3000", "api.example.com")))
	assert.True(t, check(req("https://CHAT.example.com", "api.example.com")))
	assert.True(t, check(req("http://api.example.com", "api.example.com")))
	assert.False(t, check(req("https://evil.example.com", "api.example.com")))
	assert.False(t, check(req("::bad", "api.example.com")))

	assert.True(t, OriginChecker([]string{"*"})(req("https://evil.example.com", "api")))
}
