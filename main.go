package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"PPChat/global"
	"PPChat/logger"
	chatservice "PPChat/module/chat/service"
	chatstore "PPChat/module/chat/store"
	usersvc "PPChat/module/user/service"
	userstore "PPChat/module/user/store"
	mgoSrv "PPChat/service/mgo"
	"PPChat/service/chat"
	"PPChat/service/storage"
	redisSrv "PPChat/service/storage/redis"
	"PPChat/tools"
	"PPChat/tools/safe"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", tools.GetEnv("CONFIG_FILE", ""), "yaml config file (env overrides it)")
	fixNames := flag.Bool("fix-user-names", false, "backfill missing user names and exit")
	flag.Parse()

	cfg, err := global.Load(*configPath)
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		os.Exit(1)
	}
	global.ConfigLogger(cfg.Log)
	defer logger.Sync()
	if cfg.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set, using the development fallback secret")
	}

	mgoCtx, stopMgo := context.WithCancel(context.Background())
	defer stopMgo()
	global.ConfigMgo(mgoCtx, cfg.Mongo)

	users := userstore.NewRepo(mgoSrv.TryGetDB)
	if *fixNames {
		os.Exit(runFixUserNames(users))
	}

	messages := chatstore.NewRepo(mgoSrv.TryGetDB)
	safe.SafeGo("mongo-indexes", func() { ensureIndexes(mgoCtx, users, messages) })

	jwt := global.JWTOptions(cfg.JWT)
	global.ConfigMiddleware(jwt)

	rdb := global.ConfigRedis(cfg.Redis)
	presence := storage.NewOnlineStore(rdb, global.OnlineConfig(cfg.Redis))

	var (
		verifier usersvc.GoogleVerifier
		oauth    usersvc.GoogleOAuth
	)
	if cfg.Google.Enabled() {
		g := usersvc.NewGoogle(usersvc.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
		})
		verifier, oauth = g, g
	} else {
		logger.Info("google sign-in disabled (GOOGLE_CLIENT_ID not set)")
	}

	rt := chat.NewServer(chat.Options{
		OpTimeout:      cfg.Realtime.OpTimeout,
		AuthTimeout:    cfg.Realtime.AuthTimeout,
		PingInterval:   cfg.Realtime.PingInterval,
		PongWait:       cfg.Realtime.PongWait,
		WriteWait:      cfg.Realtime.WriteWait,
		SendQueue:      cfg.Realtime.SendQueue,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		AllowedOrigins: cfg.Origins(),
	}, presence, users, chat.NewAuthenticator(jwt, users))

	r := newRouter(routerDeps{
		cfg:      cfg,
		users:    users,
		userSvc:  usersvc.NewService(users, jwt, verifier),
		oauth:    oauth,
		chatSvc:  chatservice.NewService(messages),
		presence: presence,
		realtime: rt,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	safe.SafeGo("http", func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			os.Exit(1)
		}
	})

	// 顺序：停止接入 -> 关闭会话（清理在线集合）-> 断开 Mongo/Redis
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.HTTP.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat-server": func(ctx context.Context) error {
				httpErr := srv.Shutdown(ctx)
				rtErr := rt.Shutdown(ctx)
				stopMgo()
				select {
				case <-mgoSrv.Done():
				case <-ctx.Done():
				}
				return errors.Join(httpErr, rtErr, redisSrv.CloseRedis())
			},
		},
	)
	exitCode := <-wait
	logger.Info("server exited", zap.Int("code", exitCode))
	logger.Sync()
	os.Exit(exitCode)
}

func ensureIndexes(ctx context.Context, users *userstore.Repo, messages *chatstore.Repo) {
	if err := mgoSrv.WaitReady(ctx); err != nil {
		logger.Warn("skip index creation", zap.Error(err))
		return
	}
	ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := users.EnsureIndexes(ictx); err != nil {
		logger.Error("ensure user indexes failed", zap.Error(err))
	}
	if err := messages.EnsureIndexes(ictx); err != nil {
		logger.Error("ensure message indexes failed", zap.Error(err))
	}
}

// runFixUserNames 给缺少名字的用户补上显示名
func runFixUserNames(users *userstore.Repo) int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := mgoSrv.WaitReady(ctx); err != nil {
		logger.Error("mongo not ready", zap.Error(err))
		return 1
	}
	n, err := users.BackfillNames(ctx)
	if err != nil {
		logger.Error("fix user names failed", zap.Error(err))
		return 1
	}
	logger.Info("fix user names done", zap.Int("updated", n))
	return 0
}
