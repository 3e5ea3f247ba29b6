package model

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message 持久化的聊天消息。公共房间消息带 RoomID；私聊带 Receiver。
type Message struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Sender    primitive.ObjectID  `bson:"sender" json:"sender"`
	Receiver  *primitive.ObjectID `bson:"receiver,omitempty" json:"receiver,omitempty"`
	RoomID    string              `bson:"roomId,omitempty" json:"roomId,omitempty"`
	Content   string              `bson:"content" json:"content"`
	IsPrivate bool                `bson:"isPrivate" json:"isPrivate"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (m *Message) GetTableName() string {
	return "messages"
}

// PrivateRoomID 两个用户之间私聊房间的稳定ID，与参数顺序无关
func PrivateRoomID(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return "dm:" + p[0] + ":" + p[1]
}
