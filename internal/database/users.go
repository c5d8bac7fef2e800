package database

import (
	"database/sql"
	"errors"
	"fmt"

	"binsight-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetUserByEmail returns the user or ErrNotFound
func GetUserByEmail(db *sqlx.DB, email string) (*models.User, error) {
	var user models.User
	query := `SELECT id, email, password, name, role, created_at, updated_at FROM users WHERE email = $1`
	err := db.Get(&user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
