package types

import "fmt"

// Status is the coarse presence of a user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
	StatusBusy    Status = "busy"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline, StatusBusy:
		return true
	default:
		return false
	}
}

// IsActive reports whether the user currently holds a live connection.
func (s Status) IsActive() bool {
	switch s {
	case StatusOnline, StatusBusy:
		return true
	case StatusAway, StatusOffline:
		return false
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}

	return status, nil
}
