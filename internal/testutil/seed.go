package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/utils"
)

// SeedUser inserts a user with a cheap bcrypt hash of password and returns
// its id.
func SeedUser(t *testing.T, db *sql.DB, email, name, password string, role model.Role) uint64 {
	t.Helper()

	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	res, err := db.ExecContext(context.Background(),
		"INSERT INTO users (email, name, hashed_password, role, created_at) VALUES (?,?,?,?,?)",
		email, name, hash, string(role), time.Now().UTC().Truncate(time.Second))
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seed user id: %v", err)
	}
	return uint64(id)
}

// SeedSeats inserts seats directly, bypassing layout replacement.
func SeedSeats(t *testing.T, db *sql.DB, seats ...model.Seat) {
	t.Helper()

	for _, s := range seats {
		_, err := db.ExecContext(context.Background(),
			"INSERT INTO seats (id, label, x, y) VALUES (?,?,?,?)", s.ID, s.Label, s.X, s.Y)
		if err != nil {
			t.Fatalf("seed seat %s: %v", s.ID, err)
		}
	}
}
