package service

import (
	"context"
	"strings"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxContentLen = 4000

type MessageStore interface {
	Insert(ctx context.Context, m *model.Message) error
	FindByRoom(ctx context.Context, roomID string, limit int64) ([]*model.Message, error)
	FindPrivate(ctx context.Context, a, b primitive.ObjectID, limit int64) ([]*model.Message, error)
}

// SendParams POST /api/chat/send
type SendParams struct {
	Receiver  string `json:"receiver"`
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	IsPrivate bool   `json:"isPrivate"`
}

// FetchParams GET /api/chat/fetch
type FetchParams struct {
	RoomID string `form:"roomId"`
	UserID string `form:"userId"`
	Limit  int64  `form:"limit"`
}

type Service struct {
	store MessageStore
}

func NewService(store MessageStore) *Service {
	return &Service{store: store}
}

func objectID(id, field string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrArgs.WrapMsg("invalid id", "field", field, "value", id)
	}
	return oid, nil
}

// Send 落库一条消息。私聊未带 roomId 时使用两人的私聊房间ID。
func (s *Service) Send(ctx context.Context, senderID string, in SendParams) (*model.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, errs.ErrArgs.WrapMsg("content is required")
	}
	if len(content) > maxContentLen {
		return nil, errs.ErrArgs.WrapMsg("content too long", "max", maxContentLen)
	}
	sender, err := objectID(senderID, "sender")
	if err != nil {
		return nil, err
	}

	m := &model.Message{
		Sender:    sender,
		RoomID:    strings.TrimSpace(in.RoomID),
		Content:   content,
		IsPrivate: in.IsPrivate,
	}
	if in.IsPrivate {
		receiver, err := objectID(in.Receiver, "receiver")
		if err != nil {
			return nil, err
		}
		m.Receiver = &receiver
		if m.RoomID == "" {
			m.RoomID = model.PrivateRoomID(senderID, in.Receiver)
		}
	} else if m.RoomID == "" {
		return nil, errs.ErrArgs.WrapMsg("roomId is required for public messages")
	}

	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Fetch 按房间，或按与 userId 的私聊取消息
func (s *Service) Fetch(ctx context.Context, requesterID string, in FetchParams) ([]*model.Message, error) {
	if room := strings.TrimSpace(in.RoomID); room != "" {
		return s.store.FindByRoom(ctx, room, in.Limit)
	}
	if in.UserID == "" {
		return nil, errs.ErrArgs.WrapMsg("roomId or userId is required")
	}
	me, err := objectID(requesterID, "requester")
	if err != nil {
		return nil, err
	}
	peer, err := objectID(in.UserID, "userId")
	if err != nil {
		return nil, err
	}
	return s.store.FindPrivate(ctx, me, peer, in.Limit)
}
