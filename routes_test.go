package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PPChat/global"
	chatservice "PPChat/module/chat/service"
	chatstore "PPChat/module/chat/store"
	usersvc "PPChat/module/user/service"
	userstore "PPChat/module/user/store"
	mgoSrv "PPChat/service/mgo"
	"PPChat/service/chat"
	"PPChat/service/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// Mongo 未启动：依赖 DB 的接口返回 503，鉴权与实时握手照常拒绝
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := global.Default()
	jwt := global.JWTOptions(cfg.JWT)
	global.ConfigMiddleware(jwt)

	users := userstore.NewRepo(mgoSrv.TryGetDB)
	presence := storage.NewOnlineStore(nil, global.OnlineConfig(cfg.Redis))
	rt := chat.NewServer(chat.Options{AllowedOrigins: cfg.Origins()}, presence, users, chat.NewAuthenticator(jwt, users))

	return newRouter(routerDeps{
		cfg:      cfg,
		users:    users,
		userSvc:  usersvc.NewService(users, jwt, nil),
		chatSvc:  chatservice.NewService(chatstore.NewRepo(mgoSrv.TryGetDB)),
		presence: presence,
		realtime: rt,
	})
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/socket", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/users", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/users/me", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/chat/send", `{}`, http.StatusUnauthorized},
		{http.MethodPost, "/api/auth/login", `{"email":"a@x.io","password":"secret1"}`, http.StatusServiceUnavailable},
		{http.MethodPost, "/api/auth/register", `{"name":"A"}`, http.StatusBadRequest},
		{http.MethodGet, "/api/auth/google", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s %s: %s", tc.method, tc.path, w.Body.String())
		require.NotEmpty(t, w.Header().Get("X-Request-ID"), tc.path)
	}
}
