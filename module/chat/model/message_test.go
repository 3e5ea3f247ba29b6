package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivateRoomID(t *testing.T) {
	assert.Equal(t, "dm:a1:b2", PrivateRoomID("b2", "a1"))
	assert.Equal(t, PrivateRoomID("x", "y"), PrivateRoomID("y", "x"))
	assert.NotEqual(t, PrivateRoomID("x", "y"), PrivateRoomID("x", "z"))
}
