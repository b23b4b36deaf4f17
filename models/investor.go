package models

import (
	"time"
)

// Investor represents a member of the fund who owns investments,
// cashcalls and bills
type Investor struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	JoinDate     time.Time `db:"join_date"`
	ActiveMember bool      `db:"active_member"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
