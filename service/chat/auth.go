package chat

import (
	"context"
	"errors"
	"strings"

	usermodel "PPChat/module/user/model"
	"PPChat/tools/errs"
	jwtlib "PPChat/tools/security"
)

var (
	ErrAuthMissing = errs.ErrTokenMissing
	ErrAuthInvalid = errs.ErrTokenInvalid
)

type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*usermodel.User, error)
}

// Authenticator 握手凭证 -> 用户。只读，不产生任何副作用。
type Authenticator struct {
	jwt   jwtlib.Options
	users UserLookup
}

func NewAuthenticator(jwt jwtlib.Options, users UserLookup) *Authenticator {
	return &Authenticator{jwt: jwt, users: users}
}

// Authenticate 缺凭证返回 ErrAuthMissing；签名错误、过期、用户不存在、查询失败均归为 ErrAuthInvalid
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*usermodel.User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrAuthMissing.WrapMsg("no token provided")
	}
	claims, err := jwtlib.Verify(a.jwt, credential)
	if err != nil {
		if errors.Is(err, ErrAuthInvalid) {
			return nil, err
		}
		return nil, ErrAuthInvalid.WrapMsg("verify token", "err", err.Error())
	}
	uid := claims.UserID()
	u, err := a.users.FindUserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil, ErrAuthInvalid.WrapMsg("unknown user", "user", uid)
		}
		return nil, ErrAuthInvalid.WrapMsg("user lookup failed", "user", uid, "err", err.Error())
	}
	if u == nil {
		return nil, ErrAuthInvalid.WrapMsg("unknown user", "user", uid)
	}
	return u, nil
}

// authReason metrics label
func authReason(err error) string {
	switch {
	case errors.Is(err, errs.ErrTokenMissing):
		return "missing"
	case errors.Is(err, errs.ErrTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}
