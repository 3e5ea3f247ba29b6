package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker WebSocket 握手时校验 Origin。
// 无 Origin 头（非浏览器客户端）放行；"*" 表示全部放行。
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	allowAll := false
	for _, a := range allowed {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		if a == "*" {
			allowAll = true
		}
		if u, err := url.Parse(a); err == nil && u.Host != "" {
			set[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if _, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
			return true
		}
		// 同源
		return strings.EqualFold(u.Host, r.Host)
	}
}
