package profile

import "time"

// Profile captures the subset of user data exposed via the public API layer.
// No email or password material leaves this package.
type Profile struct {
	ID        string
	FullName  string
	Role      string
	CreatedAt time.Time
}
