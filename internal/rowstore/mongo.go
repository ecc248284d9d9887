package rowstore

import (
	"context"
	"fmt"
	"time"

	"github.com/modernplatform/modern-platform/internal/backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps each table in a collection of the same name. Rows are
// addressed by their string "id" field, the driver's _id is never exposed.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: time.Now}
}

// EnsureIndexes creates the unique and lookup indexes every table relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for table, extra := range Unique {
		models := []mongo.IndexModel{
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		}
		for _, col := range extra {
			models = append(models, mongo.IndexModel{Keys: bson.D{{Key: col, Value: 1}}, Options: options.Index().SetUnique(true)})
		}
		if table == backend.TablePosts {
			models = append(models,
				mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}},
				mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			)
		}
		if _, err := s.db.Collection(table).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", table, err)
		}
	}
	return nil
}

func eqFilter(eq map[string]string) bson.M {
	f := bson.M{}
	for k, v := range eq {
		f[k] = v
	}
	return f
}

func (s *MongoStore) Select(ctx context.Context, table string, q backend.Query) ([]Record, error) {
	if err := checkQuery(table, q); err != nil {
		return nil, err
	}
	col := s.db.Collection(table)
	var cur *mongo.Cursor
	var err error
	if q.Embed == nil {
		opts := options.Find().SetProjection(bson.M{"_id": 0})
		if q.Order != nil {
			opts.SetSort(bson.D{{Key: q.Order.Column, Value: direction(q.Order)}})
		}
		if q.Limit > 0 {
			opts.SetLimit(int64(q.Limit))
		}
		cur, err = col.Find(ctx, eqFilter(q.Eq), opts)
	} else {
		cur, err = col.Aggregate(ctx, embedPipeline(q))
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		rec := normalize(d).(Record)
		if q.Embed != nil {
			if _, ok := rec[q.Embed.As]; !ok {
				rec[q.Embed.As] = nil
			}
		}
		out = append(out, shape(rec, q))
	}
	return out, nil
}

// embedPipeline joins the embedded table with $lookup and keeps at most one
// related row, like a foreign key.
func embedPipeline(q backend.Query) mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: eqFilter(q.Eq)}}}
	if q.Order != nil {
		p = append(p, bson.D{{Key: "$sort", Value: bson.D{{Key: q.Order.Column, Value: direction(q.Order)}}}})
	}
	if q.Limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	p = append(p,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: q.Embed.Table},
			{Key: "localField", Value: q.Embed.Column},
			{Key: "foreignField", Value: "id"},
			{Key: "as", Value: q.Embed.As},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + q.Embed.As},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: q.Embed.As + "._id", Value: 0},
		}}},
	)
	return p
}

func direction(o *backend.Order) int {
	if o.Desc {
		return -1
	}
	return 1
}

func (s *MongoStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	row := prepareInsert(rec, s.now())
	if _, err := s.db.Collection(table).InsertOne(ctx, bson.M(row)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &backend.APIError{Kind: backend.ErrConflict, Code: "23505", Message: err.Error()}
		}
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return row, nil
}

func (s *MongoStore) Update(ctx context.Context, table string, eq map[string]string, patch Record) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	res, err := s.db.Collection(table).UpdateMany(ctx, eqFilter(eq), bson.M{"$set": bson.M(preparePatch(patch, s.now()))})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) Delete(ctx context.Context, table string, eq map[string]string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	res, err := s.db.Collection(table).DeleteMany(ctx, eqFilter(eq))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return res.DeletedCount, nil
}

// normalize converts driver values into plain Record values.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		r := make(Record, len(t))
		for k, vv := range t {
			r[k] = normalize(vv)
		}
		return r
	case bson.D:
		r := make(Record, len(t))
		for _, e := range t {
			r[e.Key] = normalize(e.Value)
		}
		return r
	case bson.A:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
