package mapping

import (
	"context"
	"time"
)

const TypeGemma = "GEMMA"

// Mapping registers a mapping definition file under an id.
type Mapping struct {
	ID           string    `bson:"_id" json:"id"`
	Type         string    `bson:"type" json:"type"`
	DocumentPath string    `bson:"document_path" json:"document_path"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// MapFunc maps the file at inputPath and returns the path of the result.
// The caller owns, and must remove, the result file.
type MapFunc func(ctx context.Context, mappingID, mappingType, inputPath string) (string, error)
