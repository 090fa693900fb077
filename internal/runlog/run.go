package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"indexer/pkg/models"
)

// Run is the terminal record of one non-rejected pipeline run.
type Run struct {
	ID         string         `json:"id"`
	MessageID  string         `json:"message_id"`
	EntityID   string         `json:"entity_id"`
	Token      string         `json:"token,omitempty"`
	Outcome    models.Outcome `json:"outcome"`
	Stage      string         `json:"stage"`
	Archived   bool           `json:"archived"`
	Published  bool           `json:"published"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

func NewRun(n models.Notification) *Run {
	return &Run{
		ID:        uuid.NewString(),
		MessageID: n.ID,
		EntityID:  n.EntityID,
		StartedAt: time.Now().UTC(),
	}
}

// Reach marks stage as the furthest point the run got to.
func (r *Run) Reach(stage string) {
	r.Stage = stage
}

// Note keeps the first error seen; later ones are usually consequences.
func (r *Run) Note(err error) {
	if err != nil && r.Error == "" {
		r.Error = err.Error()
	}
}

func (r *Run) Finish(outcome models.Outcome) {
	r.Outcome = outcome
	r.FinishedAt = time.Now().UTC()
}

type Recorder interface {
	Record(ctx context.Context, run Run) error
}

type LatestReader interface {
	Latest(ctx context.Context, token string) (*Run, error)
}

type HistoryReader interface {
	History(ctx context.Context, token string, limit int) ([]Run, error)
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Run) error { return nil }

// Multi fans a run out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, run Run) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
