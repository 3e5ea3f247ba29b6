package chat

import (
	"encoding/json"
	"strconv"
	"strings"

	"PPChat/tools/decode"
	"PPChat/tools/errs"
)

// Envelope 文本帧格式 {"event": "...", "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode 构造出站帧，编码一次后可发给多个会话
func Encode(event string, data any) ([]byte, error) {
	b, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return nil, errs.WrapMsg(err, "encode frame", "event", event)
	}
	return b, nil
}

// Event 入站事件（tagged union），由 Server.handle 做类型分派
type Event interface {
	Name() string
}

type GetOnlineUsers struct{}

type JoinRoom struct {
	RoomID string
}

type LeaveRoom struct {
	RoomID string
}

// SendMessage 保留客户端原始字段，广播时原样带出
type SendMessage struct {
	RoomID  string
	Payload map[string]any
}

func (GetOnlineUsers) Name() string { return EventGetOnlineUsers }
func (JoinRoom) Name() string       { return EventJoinRoom }
func (LeaveRoom) Name() string      { return EventLeaveRoom }
func (SendMessage) Name() string    { return EventSendMessage }

type roomRef struct {
	RoomID string `json:"roomId"`
}

func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.ErrProtocol.WrapMsg("malformed frame", "err", err.Error())
	}
	if env.Event == "" {
		return nil, errs.ErrProtocol.WrapMsg("frame without event")
	}
	return &env, nil
}

// Decode 解出具体事件；无法识别或缺字段返回 ErrProtocol
func (e *Envelope) Decode() (Event, error) {
	switch e.Event {
	case EventGetOnlineUsers:
		return GetOnlineUsers{}, nil
	case EventJoinRoom:
		room, err := e.room()
		if err != nil {
			return nil, err
		}
		return JoinRoom{RoomID: room}, nil
	case EventLeaveRoom:
		room, err := e.room()
		if err != nil {
			return nil, err
		}
		return LeaveRoom{RoomID: room}, nil
	case EventSendMessage:
		m, err := e.object()
		if err != nil {
			return nil, err
		}
		ref, err := decode.DecodeMap[roomRef](m)
		if err != nil {
			return nil, errs.ErrProtocol.WrapMsg("bad send_message payload", "err", err.Error())
		}
		if strings.TrimSpace(ref.RoomID) == "" {
			return nil, errs.ErrProtocol.WrapMsg("send_message without roomId")
		}
		return SendMessage{RoomID: ref.RoomID, Payload: m}, nil
	default:
		return nil, errs.ErrProtocol.WrapMsg("unknown event", "event", e.Event)
	}
}

func ParseEvent(raw []byte) (Event, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return env.Decode()
}

// room 接受 "r1"、数字或 {"roomId": ...}
func (e *Envelope) room() (string, error) {
	var v any
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &v); err != nil {
			return "", errs.ErrProtocol.WrapMsg("bad room payload", "event", e.Event)
		}
	}
	var room string
	switch t := v.(type) {
	case string:
		room = t
	case float64:
		room = strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		ref, err := decode.DecodeMap[roomRef](t)
		if err != nil {
			return "", errs.ErrProtocol.WrapMsg("bad room payload", "event", e.Event, "err", err.Error())
		}
		room = ref.RoomID
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return "", errs.ErrProtocol.WrapMsg("missing room id", "event", e.Event)
	}
	return room, nil
}

// object 对象负载；客户端把对象序列化成字符串再发的也接受
func (e *Envelope) object() (map[string]any, error) {
	var v any
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &v) != nil {
		return nil, errs.ErrProtocol.WrapMsg("expected object payload", "event", e.Event)
	}
	if s, ok := v.(string); ok {
		var inner any
		if json.Unmarshal([]byte(s), &inner) == nil {
			v = inner
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.ErrProtocol.WrapMsg("expected object payload", "event", e.Event)
	}
	return m, nil
}
