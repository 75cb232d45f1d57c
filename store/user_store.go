package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"

	"sellerpulse/api/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

type UserStore struct {
	db *sql.DB

	// emailCache memoizes uid -> email lookups for analytics display.
	// Injected at construction so tests control its contents and size.
	emailCache *lru.Cache[string, string]
}

// NewUserStore creates a new UserStore instance. emailCache may be nil to
// disable memoization.
func NewUserStore(db *sql.DB, emailCache *lru.Cache[string, string]) *UserStore {
	return &UserStore{db: db, emailCache: emailCache}
}

// CreateUser inserts a new user into the database.
func (s *UserStore) CreateUser(ctx context.Context, email string, hashedPassword []byte) (*models.User, error) {
	user := &models.User{}
	query := `
		INSERT INTO users (email, hashed_password)
		VALUES ($1, $2)
		RETURNING id, email, created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query, email, hashedPassword).Scan(
		&user.ID,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err.Error() == `pq: duplicate key value violates unique constraint "idx_users_email"` ||
			err.Error() == `pq: duplicate key value violates unique constraint "users_email_key"` {
			return nil, fmt.Errorf("user with email '%s' already exists", email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("User created in DB: ID=%d, Email=%s", user.ID, user.Email)
	return user, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, hashed_password, created_at, updated_at
		FROM users
		WHERE email = $1;
	`
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user with email '%s' not found", email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetEmailByUID resolves a session uid (the string form of a user id) to
// the user's email, consulting the cache first. Unknown or malformed uids
// return an empty email with no error; only database failures propagate.
func (s *UserStore) GetEmailByUID(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", nil
	}
	if s.emailCache != nil {
		if email, ok := s.emailCache.Get(uid); ok {
			return email, nil
		}
	}

	id, err := strconv.Atoi(uid)
	if err != nil {
		return "", nil
	}

	var email string
	query := `SELECT email FROM users WHERE id = $1;`
	err = s.db.QueryRowContext(ctx, query, id).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get email for uid %s: %w", uid, err)
	}

	if s.emailCache != nil {
		s.emailCache.Add(uid, email)
	}
	return email, nil
}
