package repository

import (
	"context"
	"fmt"

	"skillswap/internal/models"
	"skillswap/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessagesCollection is the MongoDB collection holding chat messages.
const MessagesCollection = "messages"

type mongoMessageLog struct {
	coll *mongo.Collection
	seq  *sequence
}

// NewMongoMessageLog returns a MessageLog stored in db's messages collection.
// It creates the (bookingId, timestamp, seq) index when missing.
func NewMongoMessageLog(ctx context.Context, db *mongo.Database) (MessageLog, error) {
	coll := db.Collection(MessagesCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "bookingId", Value: 1},
			{Key: "timestamp", Value: 1},
			{Key: "seq", Value: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create messages index: %w", err)
	}
	return &mongoMessageLog{coll: coll, seq: newSequence()}, nil
}

func (r *mongoMessageLog) Append(ctx context.Context, msg *models.ChatMessage) error {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "mongodb", "Append", MessagesCollection)
	defer span.End()

	if msg.ID == "" {
		if err := msg.BeforeCreate(nil); err != nil {
			return models.NewInternalError(err)
		}
	}
	msg.Seq = r.seq.next()
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mongoMessageLog) History(ctx context.Context, bookingID string) ([]models.ChatMessage, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "mongodb", "History", MessagesCollection)
	defer span.End()

	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "seq", Value: 1},
	})
	cursor, err := r.coll.Find(ctx, bson.M{"bookingId": bookingID}, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	messages := []models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}
