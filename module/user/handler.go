package user

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"PPChat/logger"
	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/module/user/model"
	"PPChat/module/user/service"
	"PPChat/service/storage"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// Directory 用户列表查询
type Directory interface {
	ListAll(ctx context.Context) ([]*model.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type Handler struct {
	svc       *service.Service
	users     Directory
	presence  storage.PresenceStore
	oauth     service.GoogleOAuth // nil 表示未配置跳转登录
	clientURL string
}

func NewHandler(svc *service.Service, users Directory, presence storage.PresenceStore, oauth service.GoogleOAuth, clientURL string) *Handler {
	return &Handler{svc: svc, users: users, presence: presence, oauth: oauth, clientURL: clientURL}
}

// Register 注册用户，返回 201 {user, token}
func (h *Handler) Register(c *gin.Context) {
	var in service.RegisterParams
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, errs.ErrArgs.WrapMsg("All fields are required", "err", err.Error()))
		return
	}
	res, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Login(c *gin.Context) {
	var in service.LoginParams
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, errs.ErrArgs.WrapMsg("Email and password are required", "err", err.Error()))
		return
	}
	res, err := h.svc.Login(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GoogleToken 前端一键登录拿到的 credential 换 token
func (h *Handler) GoogleToken(c *gin.Context) {
	var in struct {
		Credential string `json:"credential"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Credential == "" {
		middleware.Fail(c, errs.ErrArgs.WrapMsg("No credential provided"))
		return
	}
	res, err := h.svc.GoogleSignIn(c.Request.Context(), in.Credential)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GoogleRedirect 跳转 Google 授权页，state 写入 cookie
func (h *Handler) GoogleRedirect(c *gin.Context) {
	if h.oauth == nil {
		middleware.Fail(c, errs.ErrNoPermission.WrapMsg("google sign-in is not configured"))
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, int(oauthStateTTL/time.Second), "/api/auth/google", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// GoogleCallback 校验 state、换取身份后带 token 跳回前端；任何失败跳回登录页
func (h *Handler) GoogleCallback(c *gin.Context) {
	failURL := h.clientURL + "/login"
	if h.oauth == nil {
		c.Redirect(http.StatusFound, failURL)
		return
	}
	state, _ := c.Cookie(oauthStateCookie)
	c.SetCookie(oauthStateCookie, "", -1, "/api/auth/google", "", c.Request.TLS != nil, true)
	if state == "" || state != c.Query("state") {
		logger.Warn("google callback: state mismatch", zap.String("request_id", middleware.RequestID(c)))
		c.Redirect(http.StatusFound, failURL)
		return
	}

	ctx := c.Request.Context()
	p, err := h.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		logger.Warn("google callback: exchange failed", zap.Error(err))
		c.Redirect(http.StatusFound, failURL)
		return
	}
	res, err := h.svc.SignInWithGoogle(ctx, p)
	if err != nil {
		logger.Error("google callback: sign in failed", zap.Error(err))
		c.Redirect(http.StatusFound, failURL)
		return
	}
	c.Redirect(http.StatusFound, h.clientURL+"/oauth-success?token="+url.QueryEscape(res.Token))
}

// Me GET /api/users/me -> {user}
func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.Public()})
}

// List 所有用户（含自己）
func (h *Handler) List(c *gin.Context) {
	users, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, out)
}

// Online 在线集合成员解析为用户资料
func (h *Handler) Online(c *gin.Context) {
	ctx := c.Request.Context()
	ids := h.presence.Members(ctx)
	users, err := h.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	out := make([]model.OnlineUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Online())
	}
	c.JSON(http.StatusOK, out)
}

// Routes 挂载 /api/auth 与 /api/users
func (h *Handler) Routes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	middleware.POST(auth, "/register", h.Register, middleware.RouteOpt{})
	middleware.POST(auth, "/login", h.Login, middleware.RouteOpt{})
	middleware.POST(auth, "/google", h.GoogleToken, middleware.RouteOpt{})
	middleware.GET(auth, "/google", h.GoogleRedirect, middleware.RouteOpt{})
	middleware.GET(auth, "/google/callback", h.GoogleCallback, middleware.RouteOpt{})

	users := api.Group("/users")
	middleware.GET(users, "", h.List, middleware.RouteOpt{IsAuth: true})
	middleware.GET(users, "/me", h.Me, middleware.RouteOpt{IsAuth: true})
	middleware.GET(users, "/online", h.Online, middleware.RouteOpt{IsAuth: true})
}
