package models

import (
	"time"

	"github.com/google/uuid"
)

// Normalize fills the envelope fields producers may omit. Everything else,
// including a missing resolving URL, is left for the handler to classify.
func Normalize(n *Notification) {
	if n == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
}
