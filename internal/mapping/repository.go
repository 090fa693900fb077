package mapping

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"indexer/internal/constants"
	apperrors "indexer/pkg/errors"
)

type Repository interface {
	Get(ctx context.Context, id string) (*Mapping, error)
	Create(ctx context.Context, m Mapping) error
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *MongoDBRepository {
	return &MongoDBRepository{
		collection: db.Collection(constants.MappingCollection),
	}
}

func (r *MongoDBRepository) Get(ctx context.Context, id string) (*Mapping, error) {
	var m Mapping
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound.WithDetail("mapping_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mapping: %w", err)
	}
	return &m, nil
}

func (r *MongoDBRepository) Create(ctx context.Context, m Mapping) error {
	_, err := r.collection.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.ErrConflict.WithDetail("mapping_id", m.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}
	return nil
}
