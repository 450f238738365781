package model

import "time"

// Class is a roster class group, e.g. "8A".
type Class struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
