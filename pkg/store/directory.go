package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The client directory maps logged-in usernames to the transport client
// IDs minted by the load balancer. It is shared state: every server
// process pointed at the same database reads and writes the same rows,
// which is what lets a push addressed to a username find the client no
// matter which server handled the login.

// Register binds a username to a client ID in one transaction.
//
// A client ID identifies one TCP connection, so any stale rows holding
// the same client ID under a different username are deleted first; the
// username row is then inserted or updated with a fresh last-seen
// timestamp. Re-login from a new connection simply overwrites the
// mapping.
func (s *Store) Register(ctx context.Context, username, clientID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ? AND username <> ?", clientID, username).
			Delete(&ActiveClient{}).Error; err != nil {
			return err
		}

		entry := &ActiveClient{
			Username: username,
			ClientID: clientID,
			LastSeen: time.Now().UTC(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"client_id", "last_seen"}),
		}).Create(entry).Error
	})
}

// UnregisterUsername removes the mapping for a username. Removing a
// username that isn't registered is a no-op.
func (s *Store) UnregisterUsername(ctx context.Context, username string) error {
	return deleteByField[ActiveClient](s.db, ctx, "username", username, nil)
}

// UnregisterClientID removes the mapping for a client ID. Used on
// disconnect cleanup, where the mapping may already be gone.
func (s *Store) UnregisterClientID(ctx context.Context, clientID string) error {
	return deleteByField[ActiveClient](s.db, ctx, "client_id", clientID, nil)
}

// LookupClientID returns the client ID currently bound to a username.
// Returns ErrClientNotFound if the user has no live mapping.
func (s *Store) LookupClientID(ctx context.Context, username string) (string, error) {
	entry, err := getByField[ActiveClient](s.db, ctx, "username", username, ErrClientNotFound)
	if err != nil {
		return "", err
	}
	return entry.ClientID, nil
}

// LookupUsername returns the username bound to a client ID.
// Returns ErrClientNotFound if no user holds this client ID.
func (s *Store) LookupUsername(ctx context.Context, clientID string) (string, error) {
	entry, err := getByField[ActiveClient](s.db, ctx, "client_id", clientID, ErrClientNotFound)
	if err != nil {
		return "", err
	}
	return entry.Username, nil
}

// ListActiveClients returns every live username to client ID mapping
// ordered by username.
func (s *Store) ListActiveClients(ctx context.Context) ([]*ActiveClient, error) {
	return listAll[ActiveClient](s.db, ctx, "username")
}
