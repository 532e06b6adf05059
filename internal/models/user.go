package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                uuid.UUID  `db:"id"`
	FirstName         string     `db:"first_name"`
	LastName          string     `db:"last_name"`
	Email             string     `db:"email"`
	Password          string     `db:"password"`
	LastLoggedInAt    *time.Time `db:"last_logged_in_at"`
	CurrentLoggedInAt *time.Time `db:"current_logged_in_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}
