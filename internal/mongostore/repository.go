// Package mongostore persists monthly records in MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finboard/internal/core"
)

const collectionName = "monthly_records"

type (
	expenseDocument struct {
		Category string `bson:"category"`
		Amount   string `bson:"amount"`
	}

	// recordDocument stores amounts as decimal strings so no precision is
	// lost through float64.
	recordDocument struct {
		ID        string            `bson:"_id"`
		Month     string            `bson:"month"`
		Revenue   string            `bson:"revenue"`
		LaborCost string            `bson:"labor_cost"`
		Headcount int               `bson:"headcount"`
		Expenses  []expenseDocument `bson:"expenses"`
		UpdatedAt time.Time         `bson:"updated_at"`
	}
)

// Repository implements ledger.Persister on a MongoDB collection.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewRepository connects to uri and verifies the connection.
func NewRepository(ctx context.Context, uri, dbName string) (*Repository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(dbName).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "month", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create month index: %w", err)
	}

	return &Repository{client: client, coll: coll}, nil
}

// UpsertRecord replaces the document for the record id, dropping any other
// document holding the same month first.
func (r *Repository) UpsertRecord(ctx context.Context, rec core.MonthlyRecord) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"month": rec.Month, "_id": bson.M{"$ne": rec.ID}}); err != nil {
		return fmt.Errorf("clear stale month document: %w", err)
	}
	doc := toDocument(rec)
	doc.UpdatedAt = time.Now().UTC()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// LoadRecords returns every record ordered by month.
func (r *Repository) LoadRecords(ctx context.Context) ([]core.MonthlyRecord, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "month", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer cur.Close(ctx)

	var docs []recordDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]core.MonthlyRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := fromDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping checks the connection for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func toDocument(rec core.MonthlyRecord) recordDocument {
	doc := recordDocument{
		ID:        rec.ID,
		Month:     rec.Month,
		Revenue:   rec.Revenue.String(),
		LaborCost: rec.LaborCost.String(),
		Headcount: rec.Headcount,
		Expenses:  make([]expenseDocument, 0, len(rec.Expenses)),
	}
	for _, e := range rec.Expenses {
		doc.Expenses = append(doc.Expenses, expenseDocument{Category: string(e.Category), Amount: e.Amount.String()})
	}
	return doc
}

func fromDocument(d recordDocument) (core.MonthlyRecord, error) {
	parse := func(field, s string) (decimal.Decimal, error) {
		if s == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("record %s: invalid %s %q: %w", d.ID, field, s, err)
		}
		return v, nil
	}

	rec := core.MonthlyRecord{ID: d.ID, Month: d.Month, Headcount: d.Headcount}
	var err error
	if rec.Revenue, err = parse("revenue", d.Revenue); err != nil {
		return rec, err
	}
	if rec.LaborCost, err = parse("labor_cost", d.LaborCost); err != nil {
		return rec, err
	}
	for _, e := range d.Expenses {
		amt, err := parse("expense amount", e.Amount)
		if err != nil {
			return rec, err
		}
		rec.Expenses = append(rec.Expenses, core.Expense{Category: core.Category(e.Category), Amount: amt})
	}
	return rec, nil
}
