package indexer

import (
	"slices"

	"indexer/pkg/models"
)

// AddressFilter admits notifications whose addressees name this handler.
type AddressFilter struct {
	handlerID string
}

func NewAddressFilter(handlerID string) *AddressFilter {
	return &AddressFilter{handlerID: handlerID}
}

// Addressed matches exactly and case-sensitively. Empty addressees never match.
func (f *AddressFilter) Addressed(n models.Notification) bool {
	return slices.Contains(n.Addressees, f.handlerID)
}
