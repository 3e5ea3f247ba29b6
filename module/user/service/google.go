package service

import (
	"context"

	"PPChat/tools/errs"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// GoogleProfile 从 Google ID token 中取出的身份信息
type GoogleProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*GoogleProfile, error)
}

// GoogleOAuth 服务端跳转授权流程
type GoogleOAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*GoogleProfile, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Google 同时实现 GoogleVerifier 与 GoogleOAuth
type Google struct {
	clientID string
	oauth    *oauth2.Config
	validate func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

func NewGoogle(c GoogleConfig) *Google {
	return &Google{
		clientID: c.ClientID,
		oauth: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.CallbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		validate: idtoken.Validate,
	}
}

func (g *Google) VerifyIDToken(ctx context.Context, raw string) (*GoogleProfile, error) {
	if raw == "" {
		return nil, errs.ErrArgs.WrapMsg("google credential is required")
	}
	payload, err := g.validate(ctx, raw, g.clientID)
	if err != nil {
		return nil, errs.ErrTokenInvalid.WrapMsg("google id token rejected", "err", err.Error())
	}
	p := &GoogleProfile{Subject: payload.Subject}
	p.Email, _ = payload.Claims["email"].(string)
	p.EmailVerified, _ = payload.Claims["email_verified"].(bool)
	p.Name, _ = payload.Claims["name"].(string)
	p.Picture, _ = payload.Claims["picture"].(string)
	if p.Email == "" {
		return nil, errs.ErrTokenInvalid.WrapMsg("google id token has no email")
	}
	return p, nil
}

func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange 用授权码换 token，再校验其中的 id_token
func (g *Google) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	if code == "" {
		return nil, errs.ErrArgs.WrapMsg("authorization code is required")
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errs.ErrTokenInvalid.WrapMsg("google code exchange failed", "err", err.Error())
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, errs.ErrTokenInvalid.WrapMsg("google response has no id_token")
	}
	return g.VerifyIDToken(ctx, raw)
}
