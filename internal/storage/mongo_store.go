package storage

import (
	"context"
	"errors"
	gopath "path"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/DenzilGreenwood/studio-sub001/internal/envelope"
	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
)

type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and returns a Store over one collection.
// Documents are keyed by their full scoped path; a parent-path field backs
// collection-level queries.
func NewMongoStore(ctx context.Context, uri, dbName, collName string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	coll := cli.Database(dbName).Collection(collName)

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}, {Key: "updatedAt", Value: -1}},
	})

	return &MongoStore{client: cli, coll: coll}, nil
}

func (m *MongoStore) Put(ctx context.Context, path string, env *envelope.Envelope) error {
	if path == "" {
		return errors.New("empty path")
	}
	_, err := m.coll.UpdateByID(
		ctx,
		path,
		putUpdate(path, env),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return &StoreError{Op: "put", Path: path, Err: err}
	}
	return nil
}

func putUpdate(path string, env *envelope.Envelope) bson.M {
	return bson.M{
		"$set": bson.M{
			"parent":    gopath.Dir(path),
			"envelope":  env,
			"updatedAt": time.Now(),
		},
		"$setOnInsert": bson.M{
			"createdAt": time.Now(),
		},
	}
}

func (m *MongoStore) Get(ctx context.Context, path string) (*Document, error) {
	if path == "" {
		return nil, errors.New("empty path")
	}
	var doc Document
	err := m.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Path: path, Err: err}
	}
	return &doc, nil
}

func (m *MongoStore) Delete(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": path}); err != nil {
		return &StoreError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

func (m *MongoStore) Query(ctx context.Context, parent string, q Query) ([]Document, error) {
	filter := bson.M{"parent": parent}
	for k, v := range q.Filters {
		filter[k] = v
	}
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, &StoreError{Op: "query", Path: parent, Err: err}
	}
	defer cur.Close(ctx)

	var results []Document
	if err := cur.All(ctx, &results); err != nil {
		return nil, &StoreError{Op: "query", Path: parent, Err: err}
	}
	return results, nil
}

// Batch applies all operations inside one multi-document transaction, so the
// commit is atomic: either every operation lands or none do.
func (m *MongoStore) Batch(ctx context.Context, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return &StoreError{Op: "batch", Err: err}
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range ops {
			switch op.Kind {
			case OpPut:
				if _, err := m.coll.UpdateByID(sc, op.Path, putUpdate(op.Path, op.Envelope), options.Update().SetUpsert(true)); err != nil {
					return nil, err
				}
			case OpDelete:
				if _, err := m.coll.DeleteOne(sc, bson.M{"_id": op.Path}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return &StoreError{Op: "batch", Err: err}
	}
	return nil
}

// Watch opens a change stream scoped to one parent path. The returned cancel
// closes the stream; the channel is closed when the stream ends.
func (m *MongoStore) Watch(ctx context.Context, parent string) (<-chan Change, func(), error) {
	pattern := "^" + regexp.QuoteMeta(parent+"/") + "[^/]+$"
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": bson.M{"$regex": pattern}}}},
	}
	wctx, cancel := context.WithCancel(ctx)
	cs, err := m.coll.Watch(wctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, nil, &StoreError{Op: "watch", Path: parent, Err: err}
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(wctx) {
			var ev struct {
				OperationType string `bson:"operationType"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
				FullDocument *Document `bson:"fullDocument"`
			}
			if err := cs.Decode(&ev); err != nil {
				continue
			}
			ch := Change{Path: ev.DocumentKey.ID}
			if ev.OperationType == "delete" {
				ch.Deleted = true
			} else {
				ch.Doc = ev.FullDocument
			}
			select {
			case out <- ch:
			case <-wctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type recoveryDoc struct {
	Path      string      `bson:"_id"`
	Blob      escrow.Blob `bson:"blob"`
	CreatedAt time.Time   `bson:"createdAt"`
}

func (m *MongoStore) PutRecoveryBlob(ctx context.Context, path string, blob *escrow.Blob) error {
	if path == "" {
		return errors.New("empty path")
	}
	_, err := m.coll.InsertOne(ctx, recoveryDoc{
		Path:      path,
		Blob:      *blob,
		CreatedAt: time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return &StoreError{Op: "put-recovery", Path: path, Err: err}
	}
	return nil
}

func (m *MongoStore) GetRecoveryBlob(ctx context.Context, path string) (*escrow.Blob, error) {
	var doc recoveryDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get-recovery", Path: path, Err: err}
	}
	return &doc.Blob, nil
}
