package store

import (
	"context"
	"time"

	"PPChat/data/database"
	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultFetchLimit = 200

type Repo struct {
	db  database.DBFunc
	now func() time.Time
}

func NewRepo(db database.DBFunc) *Repo {
	return &Repo{db: db, now: time.Now}
}

func (r *Repo) coll() (*mongo.Collection, error) {
	return database.Collection(r.db, &model.Message{})
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	c, err := r.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "ensure message indexes")
	}
	return nil
}

func (r *Repo) Insert(ctx context.Context, m *model.Message) error {
	c, err := r.coll()
	if err != nil {
		return err
	}
	now := r.now()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	m.CreatedAt, m.UpdatedAt = now, now
	if _, err := c.InsertOne(ctx, m); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("insert message", "err", err.Error())
	}
	return nil
}

// FindByRoom 按时间升序返回房间内最新的 limit 条（<=0 用默认值）
func (r *Repo) FindByRoom(ctx context.Context, roomID string, limit int64) ([]*model.Message, error) {
	return r.find(ctx, bson.M{"roomId": roomID}, limit)
}

// FindPrivate a 与 b 之间的私聊消息（双向）
func (r *Repo) FindPrivate(ctx context.Context, a, b primitive.ObjectID, limit int64) ([]*model.Message, error) {
	filter := bson.M{
		"isPrivate": true,
		"$or": bson.A{
			bson.M{"sender": a, "receiver": b},
			bson.M{"sender": b, "receiver": a},
		},
	}
	return r.find(ctx, filter, limit)
}

func (r *Repo) find(ctx context.Context, filter bson.M, limit int64) ([]*model.Message, error) {
	c, err := r.coll()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(limit)
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("find messages", "err", err.Error())
	}
	out := make([]*model.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("decode messages", "err", err.Error())
	}
	// 倒序取最新，返回前翻回正序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
