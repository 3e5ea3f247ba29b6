package database

import (
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
)

type Table interface {
	GetTableName() string
}

// DBFunc 返回当前可用的库；Mongo 未就绪时返回 false（见 service/mgo.TryGetDB）
type DBFunc func() (*mongo.Database, bool)

// Collection 取表对应的集合；库不可用时返回 ErrStoreUnavailable
func Collection(db DBFunc, t Table) (*mongo.Collection, error) {
	if db == nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("no database configured")
	}
	d, ok := db()
	if !ok || d == nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("mongo not ready", "table", t.GetTableName())
	}
	return d.Collection(t.GetTableName()), nil
}
