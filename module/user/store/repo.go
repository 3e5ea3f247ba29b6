package store

import (
	"context"
	"errors"
	"time"

	"PPChat/data/database"
	"PPChat/data/database/mgo/mongoutil"
	"PPChat/module/user/model"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repo users 集合读写
type Repo struct {
	db  database.DBFunc
	now func() time.Time
}

func NewRepo(db database.DBFunc) *Repo {
	return &Repo{db: db, now: time.Now}
}

func (r *Repo) coll() (*mongo.Collection, error) {
	return database.Collection(r.db, &model.User{})
}

func storeErr(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrRecordNotFound.WrapMsg(op)
	}
	if mongoutil.IsDuplicateKey(err) {
		return errs.ErrUserExists.WrapMsg(op)
	}
	return errs.ErrStoreUnavailable.WrapMsg(op, "err", err.Error())
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrRecordNotFound.WrapMsg("malformed user id", "id", id)
	}
	return oid, nil
}

// EnsureIndexes email 唯一；googleId 稀疏唯一
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	c, err := r.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return errs.WrapMsg(err, "ensure user indexes")
	}
	return nil
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid}, "find user by id")
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": model.NormalizeEmail(email)}, "find user by email")
}

func (r *Repo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"googleId": googleID}, "find user by google id")
}

func (r *Repo) findOne(ctx context.Context, filter bson.M, op string) (*model.User, error) {
	c, err := r.coll()
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := c.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, storeErr(err, op)
	}
	return &u, nil
}

// FindUsersByIDs 不合法的 id 直接忽略；不存在的用户不返回
func (r *Repo) FindUsersByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*model.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, "find users by ids")
}

func (r *Repo) ListAll(ctx context.Context) ([]*model.User, error) {
	return r.find(ctx, bson.M{}, "list users")
}

func (r *Repo) find(ctx context.Context, filter bson.M, op string) ([]*model.User, error) {
	c, err := r.coll()
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, filter, options.Find().SetProjection(bson.M{"password": 0}).SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, storeErr(err, op)
	}
	out := make([]*model.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr(err, op)
	}
	return out, nil
}

func (r *Repo) Create(ctx context.Context, u *model.User) error {
	c, err := r.coll()
	if err != nil {
		return err
	}
	now := r.now()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = model.NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := c.InsertOne(ctx, u); err != nil {
		return storeErr(err, "create user")
	}
	return nil
}

func (r *Repo) UpdateUserOnlineStatus(ctx context.Context, id string, online bool) error {
	return r.update(ctx, id, bson.M{"isOnline": online}, "update online status")
}

// LinkGoogle 绑定 googleId 并刷新头像（头像为空则保留原值）
func (r *Repo) LinkGoogle(ctx context.Context, id, googleID, avatar string) error {
	set := bson.M{"googleId": googleID}
	if avatar != "" {
		set["avatar"] = avatar
	}
	return r.update(ctx, id, set, "link google account")
}

func (r *Repo) update(ctx context.Context, id string, set bson.M, op string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	c, err := r.coll()
	if err != nil {
		return err
	}
	set["updatedAt"] = r.now()
	res, err := c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return storeErr(err, op)
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg(op, "id", id)
	}
	return nil
}

// BackfillNames 给 name 缺失/为空的用户补上显示名，返回修改条数
func (r *Repo) BackfillNames(ctx context.Context) (int, error) {
	c, err := r.coll()
	if err != nil {
		return 0, err
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"name": bson.M{"$exists": false}},
		bson.M{"name": ""},
		bson.M{"name": nil},
	}}
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return 0, storeErr(err, "find unnamed users")
	}
	var users []*model.User
	if err := cur.All(ctx, &users); err != nil {
		return 0, storeErr(err, "decode unnamed users")
	}
	fixed := 0
	for _, u := range users {
		name := model.FallbackName(u)
		if err := r.update(ctx, u.UserID(), bson.M{"name": name}, "backfill name"); err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}
