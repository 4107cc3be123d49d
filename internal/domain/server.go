package domain

import "time"

// Server identifies one remote control plane the engine polls.
type Server struct {
	ID        string
	Name      string
	BaseURL   string
	APIKey    string
	Enabled   bool
	CreatedAt time.Time
}
