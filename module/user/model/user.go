package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User 用户主档。Password 为 bcrypt 哈希，永不序列化输出。
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password,omitempty" json:"-"`
	GoogleID string             `bson:"googleId,omitempty" json:"googleId,omitempty"`
	Avatar   string             `bson:"avatar" json:"avatar"`

	// 展示用，允许与在线集合轻微不一致
	IsOnline bool `bson:"isOnline" json:"isOnline"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) GetTableName() string {
	return "users"
}

// UserID hex 形式的主键
func (u *User) UserID() string {
	if u == nil || u.ID.IsZero() {
		return ""
	}
	return u.ID.Hex()
}

// PublicUser 对外可见字段
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	IsOnline bool   `json:"isOnline"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.UserID(),
		Name:     u.Name,
		Email:    u.Email,
		Avatar:   u.Avatar,
		IsOnline: u.IsOnline,
	}
}

// OnlineUser online-users 列表中的条目
type OnlineUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

func (u *User) Online() OnlineUser {
	return OnlineUser{
		ID:     u.UserID(),
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FallbackName 名字缺失时的显示名：邮箱前缀，否则 User+ID 末四位
func FallbackName(u *User) string {
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	id := u.UserID()
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	return "User" + id
}
