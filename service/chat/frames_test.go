package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	cases := []struct {
		raw  string
		want Event
	}{
		{`{"event":"get-online-users"}`, GetOnlineUsers{}},
		{`{"event":"joinRoom","data":"r1"}`, JoinRoom{RoomID: "r1"}},
		{`{"event":"joinRoom","data":{"roomId":"r2"}}`, JoinRoom{RoomID: "r2"}},
		{`{"event":"joinRoom","data":{"roomId":42}}`, JoinRoom{RoomID: "42"}},
		{`{"event":"joinRoom","data":7}`, JoinRoom{RoomID: "7"}},
		{`{"event":"leaveRoom","data":" r1 "}`, LeaveRoom{RoomID: "r1"}},
	}
	for _, tc := range cases {
		got, err := ParseEvent([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseSendMessage(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"send_message","data":{"content":"hi","roomId":"r1","extra":{"a":1}}}`))
	require.NoError(t, err)
	msg, ok := ev.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "r1", msg.RoomID)
	assert.Equal(t, "hi", msg.Payload["content"])
	assert.Contains(t, msg.Payload, "extra")

	// 对象被序列化成字符串发送
	ev, err = ParseEvent([]byte(`{"event":"send_message","data":"{\"content\":\"x\",\"roomId\":\"r9\"}"}`))
	require.NoError(t, err)
	assert.Equal(t, "r9", ev.(SendMessage).RoomID)
}

func TestParseEventRejects(t *testing.T) {
	bad := []string{
		`not json`,
		`{"data":"r1"}`,
		`{"event":"dance"}`,
		`{"event":"joinRoom"}`,
		`{"event":"joinRoom","data":{"room":"r1"}}`,
		`{"event":"joinRoom","data":"  "}`,
		`{"event":"send_message","data":{"content":"hi"}}`,
		`{"event":"send_message","data":{"content":"hi","roomId":""}}`,
		`{"event":"send_message","data":[1,2]}`,
		`{"event":"send_message"}`,
	}
	for _, raw := range bad {
		_, err := ParseEvent([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, errs.ErrProtocol), raw)
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(EventUserOffline, map[string]string{"userId": "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user-offline","data":{"userId":"u1"}}`, string(b))

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, EventUserOffline, env.Event)

	_, err = Encode("x", make(chan int))
	assert.Error(t, err)
}
