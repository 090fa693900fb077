package models

import "time"

// MetadataResolvingURL is the metadata key carrying the record location.
const MetadataResolvingURL = "resolvingUrl"

type Notification struct {
	ID         string            `json:"id"`
	RoutingKey string            `json:"routing_key"`
	EntityID   string            `json:"entity_id"`
	Addressees []string          `json:"addressees,omitempty"`
	Metadata   map[string]string `json:"metadata"`
	TraceID    string            `json:"trace_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (n *Notification) GetMetadata(key string) (string, bool) {
	if n.Metadata == nil {
		return "", false
	}
	value, ok := n.Metadata[key]
	return value, ok
}

func (n *Notification) ResolvingURL() (string, bool) {
	return n.GetMetadata(MetadataResolvingURL)
}

// Clone returns a deep copy so adapters can annotate without touching the original.
func (n Notification) Clone() Notification {
	out := n
	if n.Addressees != nil {
		out.Addressees = append([]string(nil), n.Addressees...)
	}
	if n.Metadata != nil {
		out.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
