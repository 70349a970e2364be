package mongodb

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tradeledger/internal/ports"
)

// toFilter translates a conjunction of conditions into a query document.
func toFilter(filter ports.Filter) bson.D {
	out := bson.D{}
	for _, cond := range filter {
		switch cond.Op {
		case ports.OpGt:
			out = append(out, bson.E{Key: cond.Field, Value: bson.D{{Key: "$gt", Value: cond.Value}}})
		default:
			out = append(out, bson.E{Key: cond.Field, Value: cond.Value})
		}
	}
	return out
}

func findOptions(opts ports.FindOptions) *options.FindOptions {
	fo := options.Find()
	if opts.SortField != "" && opts.SortOrder != 0 {
		fo.SetSort(bson.D{{Key: opts.SortField, Value: int(opts.SortOrder)}})
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.AllowDiskUse {
		fo.SetAllowDiskUse(true)
	}
	return fo
}

func indexModel(model ports.IndexModel) mongo.IndexModel {
	order := int(model.Order)
	if order == 0 {
		order = int(ports.Ascending)
	}
	return mongo.IndexModel{
		Keys:    bson.D{{Key: model.Field, Value: order}},
		Options: options.Index().SetName(model.Name).SetUnique(model.Unique),
	}
}

// fromJSON parses a relaxed extended JSON document.
func fromJSON(doc ports.Document) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(doc, false, &d); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	return d, nil
}

// toJSON renders d as relaxed extended JSON without the server-assigned _id.
func toJSON(d bson.D) (ports.Document, error) {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	data, err := bson.MarshalExtJSON(out, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}
	return ports.Document(data), nil
}

// translate maps driver errors onto the standard persistence errors.
func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%v: %w", err, ports.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%v: %w", err, ports.ErrDuplicateKey)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%v: %w", err, ports.ErrConnection)
	}
	return err
}
