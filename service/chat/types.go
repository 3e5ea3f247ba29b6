package chat

import "time"

// Conn 会话写端依赖的连接能力，*websocket.Conn 满足该接口。
// WriteControl 与 Close 可与其他方法并发调用。
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// 入站事件
const (
	EventGetOnlineUsers = "get-online-users"
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSendMessage    = "send_message"
)

// 出站事件
const (
	EventOnlineUsers    = "online-users"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventReceiveMessage = "receive_message"
)
