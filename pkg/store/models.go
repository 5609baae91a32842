package store

import (
	"fmt"
	"time"
)

// Role represents the role of a classroom user.
type Role string

const (
	// RoleTeacher owns rooms and receives student screen and app data.
	RoleTeacher Role = "teacher"

	// RoleStudent joins rooms and responds to teacher requests.
	RoleStudent Role = "student"
)

// IsValid checks if the role is a known Role.
func (r Role) IsValid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User represents a classroom account used for login.
//
// The username doubles as the natural key: rooms reference their teacher
// by username and the client directory maps usernames to transport
// client IDs.
type User struct {
	Username     string    `gorm:"primaryKey;size:255" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;size:50" json:"role"` // teacher, student
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if !Role(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// GetRole returns the user's role as a Role type.
func (u *User) GetRole() Role {
	return Role(u.Role)
}

// Room represents a monitoring session owned by one teacher.
type Room struct {
	RoomID    string    `gorm:"primaryKey;size:255" json:"room_id"`
	Teacher   string    `gorm:"not null;size:255;index" json:"teacher"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Room.
func (Room) TableName() string {
	return "rooms"
}

// RoomParticipant records a student's membership in a room.
//
// The composite primary key (room_id, student_username) makes joins
// idempotent: re-joining the same room keeps the stored row instead of
// duplicating it.
type RoomParticipant struct {
	RoomID          string    `gorm:"primaryKey;size:255" json:"room_id"`
	StudentUsername string    `gorm:"primaryKey;size:255" json:"student_username"`
	StudentName     string    `gorm:"not null;size:255" json:"student_name"`
	MSSV            string    `gorm:"not null;size:64" json:"mssv"`
	JoinedAt        time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName returns the table name for RoomParticipant.
func (RoomParticipant) TableName() string {
	return "room_participants"
}

// ActiveClient maps a logged-in username to its current transport
// client ID. One row per username; client IDs are unique so a reused
// transport connection can never alias two users.
type ActiveClient struct {
	Username string    `gorm:"primaryKey;size:255" json:"username"`
	ClientID string    `gorm:"uniqueIndex;not null;size:64" json:"client_id"`
	LastSeen time.Time `gorm:"not null" json:"last_seen"`
}

// TableName returns the table name for ActiveClient.
func (ActiveClient) TableName() string {
	return "active_clients"
}

// allModels returns every entity registered for auto-migration.
func allModels() []any {
	return []any{
		&User{},
		&Room{},
		&RoomParticipant{},
		&ActiveClient{},
	}
}
