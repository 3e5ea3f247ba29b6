package security

import (
	"net/http"
	"strings"
	"sync"

	"PPChat/tools/errs"
	jwtlib "PPChat/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续模块统一用这两个 key 读取
const (
	PPCtxAuthKey   = "authorization" // string：原始 token
	PPCtxUserIDKey = "userId"        // string：token 中的用户ID
)

type Options struct {
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
	EnableQueryToken          bool   // 允许 ?token=（WebSocket 握手用）
	JWT                       jwtlib.Options
}

var (
	defaultMu  sync.RWMutex
	defaultJWT = jwtlib.DefaultOptions(nil)
)

// Configure 启动时设置全局默认签名参数
func Configure(jwt jwtlib.Options) {
	defaultMu.Lock()
	defaultJWT = jwt
	defaultMu.Unlock()
}

func DefaultOptions() *Options {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return &Options{
		HeaderToken:               PPCtxAuthKey,
		EnableAuthorizationBearer: true,
		JWT:                       defaultJWT,
	}
}

// ExtractToken 依次读取 Authorization: Bearer、自定义头、可选的 query 参数
func ExtractToken(r *http.Request, opts *Options) string {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
				return strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if opts.HeaderToken != "" && !strings.EqualFold(opts.HeaderToken, "Authorization") {
		if tok := strings.TrimSpace(r.Header.Get(opts.HeaderToken)); tok != "" {
			return tok
		}
	}
	if opts.EnableQueryToken {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}

func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := ExtractToken(c.Request, opts)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenMissing)
			return
		}
		claims, err := jwtlib.Verify(opts.JWT, token)
		if err != nil {
			ce := errs.AsCode(err)
			if ce == nil {
				ce = errs.ErrTokenInvalid
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ce)
			return
		}

		c.Set(PPCtxAuthKey, token)
		c.Set(PPCtxUserIDKey, claims.UserID())
		c.Next()
	}
}

// UserID 当前请求的用户ID（需经过 Middleware）
func UserID(c *gin.Context) string {
	return c.GetString(PPCtxUserIDKey)
}
