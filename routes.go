package main

import (
	"context"
	"net/http"
	"time"

	"PPChat/global"
	mid "PPChat/middleware"
	chatmod "PPChat/module/chat"
	chatservice "PPChat/module/chat/service"
	"PPChat/module/user"
	usersvc "PPChat/module/user/service"
	mgoSrv "PPChat/service/mgo"
	"PPChat/service/chat"
	"PPChat/service/metrics"
	"PPChat/service/storage"
	redisSrv "PPChat/service/storage/redis"

	"github.com/gin-gonic/gin"
)

type routerDeps struct {
	cfg      *global.AppConfig
	users    user.Directory
	userSvc  *usersvc.Service
	oauth    usersvc.GoogleOAuth // nil 表示未配置
	chatSvc  *chatservice.Service
	presence storage.PresenceStore
	realtime *chat.Server
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(mid.Manager().Handlers()...)

	r.GET("/healthz", healthz)
	r.GET("/metrics", metrics.Handler())
	r.GET("/socket", d.realtime.HandleWS)

	api := r.Group("/api")
	user.NewHandler(d.userSvc, d.users, d.presence, d.oauth, d.cfg.HTTP.ClientURL).Routes(api)
	chatmod.NewHandler(d.chatSvc).Routes(api)
	return r
}

// healthz Redis 不可达只算降级（在线集合走进程内），Mongo 不可达返回 503
func healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	code := http.StatusOK
	body := gin.H{"redis": "ok", "mongo": "ok"}
	if err := redisSrv.Ping(ctx); err != nil {
		body["redis"] = "degraded"
	}
	if err := mgoSrv.Ping(ctx); err != nil {
		body["mongo"] = "down"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}
