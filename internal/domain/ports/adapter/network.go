package adapter

import "context"

// Disconnector ends a device's network session on the access point. identifier is
// a phone number for paid sessions and a MAC address for code sessions.
type Disconnector interface {
	Disconnect(ctx context.Context, identifier string) error
}
