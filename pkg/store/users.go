package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CreateUser hashes the password and inserts a new user row.
// Returns ErrDuplicateUser if the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         string(role),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return user, nil
}

// GetUser returns the user with the given username.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *Store) GetUser(ctx context.Context, username string) (*User, error) {
	return getByField[User](s.db, ctx, "username", username, ErrUserNotFound)
}

// ListUsers returns all users ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	return listAll[User](s.db, ctx, "username")
}

// DeleteUser removes a user together with everything hanging off it:
// rooms the user teaches (and their participants), room memberships,
// and the client directory row. Returns ErrUserNotFound if the user
// doesn't exist.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}

		// Rooms taught by this user cascade to their participants.
		var rooms []Room
		if err := tx.Where("teacher = ?", username).Find(&rooms).Error; err != nil {
			return err
		}
		for _, room := range rooms {
			if err := tx.Where("room_id = ?", room.RoomID).Delete(&RoomParticipant{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("teacher = ?", username).Delete(&Room{}).Error; err != nil {
			return err
		}

		// Memberships in other teachers' rooms.
		if err := tx.Where("student_username = ?", username).Delete(&RoomParticipant{}).Error; err != nil {
			return err
		}

		// Client directory entry, if the user is currently online.
		if err := tx.Where("username = ?", username).Delete(&ActiveClient{}).Error; err != nil {
			return err
		}

		return tx.Delete(&user).Error
	})
}

// SetPassword replaces the user's password hash.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *Store) SetPassword(ctx context.Context, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Update("password_hash", hash)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Authenticate verifies a username/password/role triple.
//
// An unknown user, a wrong password, or a role mismatch all return
// (false, nil); the error is reserved for store failures. Callers must
// not learn which of the three checks failed.
func (s *Store) Authenticate(ctx context.Context, username, password string, role Role) (bool, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	if user.GetRole() != role {
		return false, nil
	}

	return VerifyPassword(password, user.PasswordHash), nil
}
