package models

import "time"

type NotificationBuilder struct {
	notification *Notification
}

func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{
		notification: &Notification{
			Metadata: make(map[string]string),
		},
	}
}

func (b *NotificationBuilder) WithID(id string) *NotificationBuilder {
	b.notification.ID = id
	return b
}

func (b *NotificationBuilder) WithRoutingKey(routingKey string) *NotificationBuilder {
	b.notification.RoutingKey = routingKey
	return b
}

func (b *NotificationBuilder) WithEntityID(entityID string) *NotificationBuilder {
	b.notification.EntityID = entityID
	return b
}

func (b *NotificationBuilder) WithAddressee(handlerID string) *NotificationBuilder {
	b.notification.Addressees = append(b.notification.Addressees, handlerID)
	return b
}

func (b *NotificationBuilder) WithMetadata(key, value string) *NotificationBuilder {
	b.notification.Metadata[key] = value
	return b
}

func (b *NotificationBuilder) WithResolvingURL(url string) *NotificationBuilder {
	return b.WithMetadata(MetadataResolvingURL, url)
}

func (b *NotificationBuilder) WithTraceID(traceID string) *NotificationBuilder {
	b.notification.TraceID = traceID
	return b
}

func (b *NotificationBuilder) WithTimestamp(timestamp time.Time) *NotificationBuilder {
	b.notification.Timestamp = timestamp
	return b
}

func (b *NotificationBuilder) Build() Notification {
	Normalize(b.notification)
	return *b.notification
}
