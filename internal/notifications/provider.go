package notifications

import "context"

// NotificationType represents the type of notification being sent.
type NotificationType string

const (
	NotificationTypeRegionDown      NotificationType = "region_down"
	NotificationTypeRegionRecovered NotificationType = "region_recovered"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Region    string
	ChannelID string
	Color     int
}

// Provider defines the interface for notification providers.
// This allows easy extension to support other providers (e.g., Telegram, Slack, etc.)
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// IsConfigured returns true if the provider has valid configuration.
	IsConfigured() bool

	// Connect establishes connection to the notification service.
	Connect(ctx context.Context) error

	// Disconnect closes the connection.
	Disconnect() error

	// Send sends a notification.
	Send(ctx context.Context, notification Notification) error
}
