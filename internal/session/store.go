package session

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"posdesk/m/domain"
)

// TTL is the absolute session lifetime. Expiry is fixed at creation, not
// sliding.
const TTL = 24 * time.Hour

// Store maps opaque session tokens to authenticated identities, backed by
// the sessions table so logins survive process restarts.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store over the shared database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Create persists a new session for the identity and returns its token.
func (s *Store) Create(id domain.Identity) (string, error) {
	token := uuid.NewString()
	expires := time.Now().Add(TTL).Unix()
	_, err := s.db.Exec(`INSERT INTO sessions (token, seller_id, name, role, expires_at) VALUES (?, ?, ?, ?, ?)`,
		token, id.ID, id.Name, id.Role, expires)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Get resolves a token to its identity. Unknown and expired tokens both
// return (nil, nil); expired rows are deleted on the way out.
func (s *Store) Get(token string) (*domain.Identity, error) {
	var row struct {
		domain.Identity
		ExpiresAt int64 `db:"expires_at"`
	}
	err := s.db.Get(&row, `SELECT seller_id, name, role, expires_at FROM sessions WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.ExpiresAt <= time.Now().Unix() {
		_, _ = s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
		return nil, nil
	}
	return &row.Identity, nil
}

// Destroy removes a session. Destroying an absent token is a no-op.
func (s *Store) Destroy(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// PurgeExpired deletes all expired sessions and reports how many went.
func (s *Store) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
