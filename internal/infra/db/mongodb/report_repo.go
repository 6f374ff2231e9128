package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

const (
	fieldID        = "_id"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
	fieldVersion   = "__v"
)

// ReportRepository stores each report as one document: the assistant's
// fields at top level next to _id, createdAt and updatedAt.
type ReportRepository struct {
	coll *mongo.Collection
}

func NewReportRepository(coll *mongo.Collection) *ReportRepository {
	return &ReportRepository{coll: coll}
}

func (r *ReportRepository) Insert(ctx context.Context, rep *domain.Report) error {
	doc, err := toBSON(rep)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, doc)
	return err
}

func (r *ReportRepository) Get(ctx context.Context, id domain.ID) (*domain.Report, error) {
	var m bson.M
	err := r.coll.FindOne(ctx, bson.D{{Key: fieldID, Value: string(id)}}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(m)
}

func (r *ReportRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Report, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)

	opts := options.Find().
		SetSort(bson.D{{Key: fieldCreatedAt, Value: -1}, {Key: fieldID, Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.Report
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		rep, err := fromBSON(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, cur.Err()
}

// toBSON builds the stored document from the decoded report. Values are
// copied as-is, so "$"-keyed objects stay plain sub-documents.
func toBSON(rep *domain.Report) (bson.D, error) {
	out := make(bson.D, 0, len(rep.Document)+3)
	out = append(out, bson.E{Key: fieldID, Value: string(rep.ID)})
	for _, k := range sortedKeys(rep.Document) {
		switch k {
		case fieldID, fieldCreatedAt, fieldUpdatedAt:
			continue
		}
		v, err := bsonValue(rep.Document[k])
		if err != nil {
			return nil, fmt.Errorf("convert report field %q: %w", k, err)
		}
		out = append(out, bson.E{Key: k, Value: v})
	}
	return append(out,
		bson.E{Key: fieldCreatedAt, Value: primitive.NewDateTimeFromTime(rep.CreatedAt)},
		bson.E{Key: fieldUpdatedAt, Value: primitive.NewDateTimeFromTime(rep.UpdatedAt)},
	), nil
}

func bsonValue(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		d := make(bson.D, 0, len(t))
		for _, k := range sortedKeys(t) {
			e, err := bsonValue(t[k])
			if err != nil {
				return nil, err
			}
			d = append(d, bson.E{Key: k, Value: e})
		}
		return d, nil
	case []any:
		a := make(bson.A, 0, len(t))
		for _, item := range t {
			e, err := bsonValue(item)
			if err != nil {
				return nil, err
			}
			a = append(a, e)
		}
		return a, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return v, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fromBSON(m bson.M) (*domain.Report, error) {
	id := fmt.Sprint(m[fieldID])
	if oid, ok := m[fieldID].(primitive.ObjectID); ok {
		id = oid.Hex()
	}
	created := dateTime(m[fieldCreatedAt])
	updated := dateTime(m[fieldUpdatedAt])
	for _, k := range []string{fieldID, fieldCreatedAt, fieldUpdatedAt, fieldVersion} {
		delete(m, k)
	}

	b, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert report %s: %w", id, err)
	}
	doc, err := domain.DecodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	rep := domain.New(domain.ID(id), doc, created)
	rep.UpdatedAt = updated
	return rep, nil
}

func dateTime(v any) time.Time {
	if dt, ok := v.(primitive.DateTime); ok {
		return dt.Time().UTC()
	}
	return time.Time{}
}
