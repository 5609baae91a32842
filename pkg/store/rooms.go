package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoom inserts a room owned by the given teacher.
// The teacher must be an existing user. Returns ErrDuplicateRoom if the
// room ID is taken.
func (s *Store) CreateRoom(ctx context.Context, roomID, teacher string) (*Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	if _, err := s.GetUser(ctx, teacher); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("teacher %q: %w", teacher, ErrUserNotFound)
		}
		return nil, err
	}

	room := &Room{
		RoomID:  roomID,
		Teacher: teacher,
	}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateRoom
		}
		return nil, err
	}
	return room, nil
}

// GetRoom returns the room with the given ID.
// Returns ErrRoomNotFound if the room doesn't exist.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	return getByField[Room](s.db, ctx, "room_id", roomID, ErrRoomNotFound)
}

// RoomTeacher returns the username of the teacher owning the room.
// Returns ErrRoomNotFound if the room doesn't exist.
func (s *Store) RoomTeacher(ctx context.Context, roomID string) (string, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	return room.Teacher, nil
}

// ListRooms returns all rooms ordered by room ID.
func (s *Store) ListRooms(ctx context.Context) ([]*Room, error) {
	return listAll[Room](s.db, ctx, "room_id")
}

// DeleteRoom removes the room and its participants in one transaction.
// Deleting a room that doesn't exist is a no-op.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&RoomParticipant{}).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", roomID).Delete(&Room{}).Error
	})
}

// AddParticipant records a student joining a room. Both the room and
// the student user must exist. Re-joining a room the student is already
// in succeeds without touching the stored row.
func (s *Store) AddParticipant(ctx context.Context, roomID, studentUsername, studentName, mssv string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room Room
		if err := tx.Where("room_id = ?", roomID).First(&room).Error; err != nil {
			return mapNotFound(err, ErrRoomNotFound)
		}

		var user User
		if err := tx.Where("username = ?", studentUsername).First(&user).Error; err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}

		participant := &RoomParticipant{
			RoomID:          roomID,
			StudentUsername: studentUsername,
			StudentName:     studentName,
			MSSV:            mssv,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(participant).Error
	})
}

// RemoveParticipant removes a student from a room. Removing a student
// who isn't in the room is a no-op.
func (s *Store) RemoveParticipant(ctx context.Context, roomID, studentUsername string) error {
	return s.db.WithContext(ctx).
		Where("room_id = ? AND student_username = ?", roomID, studentUsername).
		Delete(&RoomParticipant{}).Error
}

// ListParticipants returns the participants of a room ordered by
// student username. Returns ErrRoomNotFound if the room doesn't exist.
func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]*RoomParticipant, error) {
	var participants []*RoomParticipant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room Room
		if err := tx.Where("room_id = ?", roomID).First(&room).Error; err != nil {
			return mapNotFound(err, ErrRoomNotFound)
		}

		participants = []*RoomParticipant{}
		return tx.Where("room_id = ?", roomID).Order("student_username").Find(&participants).Error
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}
