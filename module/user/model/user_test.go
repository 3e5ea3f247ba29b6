package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserJSONHidesPassword(t *testing.T) {
	u := &User{ID: primitive.NewObjectID(), Name: "Ann", Email: "ann@x.io", Password: "$2a$10$hash"}
	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hash")
	assert.Contains(t, string(b), u.ID.Hex())
}

func TestProjections(t *testing.T) {
	u := &User{ID: primitive.NewObjectID(), Name: "Ann", Email: "ann@x.io", Avatar: "a.png", IsOnline: true}

	p := u.Public()
	assert.Equal(t, u.ID.Hex(), p.ID)
	assert.True(t, p.IsOnline)

	o := u.Online()
	assert.Equal(t, OnlineUser{ID: u.ID.Hex(), Name: "Ann", Email: "ann@x.io", Avatar: "a.png"}, o)

	var nilUser *User
	assert.Equal(t, "", nilUser.UserID())
}

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "bob.smith", FallbackName(&User{Email: "bob.smith@example.com"}))

	id, err := primitive.ObjectIDFromHex("64b7f0c2a1b2c3d4e5f6a7b8")
	require.NoError(t, err)
	assert.Equal(t, "Usera7b8", FallbackName(&User{ID: id}))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@x.io", NormalizeEmail("  Ann@X.io "))
}
