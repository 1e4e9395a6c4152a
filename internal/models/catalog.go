package models

import "time"

type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Author struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
