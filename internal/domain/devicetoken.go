package domain

import "time"

// DeviceToken is a push-notification registration for one user device.
type DeviceToken struct {
	UserID    string
	Token     string
	Platform  string
	CreatedAt time.Time
}
