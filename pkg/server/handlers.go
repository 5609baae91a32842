package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/classmux/classmux/internal/logger"
	"github.com/classmux/classmux/internal/telemetry"
	"github.com/classmux/classmux/pkg/packet"
	"github.com/classmux/classmux/pkg/store"
)

// Feature handlers. Each takes the caller's client id and the validated
// request and returns the response payload for that caller; handlers that
// address other clients receive the connection-bound push function.
//
// The response message strings are part of the client protocol: desktop
// clients display them verbatim and in places match on them, so they stay
// stable even where they read awkwardly.

func (d *Dispatcher) handleLogin(ctx context.Context, clientID string, req *packet.Login) packet.Response {
	ok, err := d.store.Authenticate(ctx, req.Username, req.Password, store.Role(req.Role))
	if err != nil {
		logger.ErrorCtx(ctx, "Authentication query failed", "username", req.Username, "error", err)
		return packet.Error("Internal server error during authentication")
	}
	if !ok {
		logger.InfoCtx(ctx, "Login failed", "username", req.Username)
		return packet.Error("Invalid credentials or role")
	}
	telemetry.SetAttributes(ctx, telemetry.Username(req.Username), telemetry.UserRole(req.Role))

	// The user is authenticated either way: a directory failure leaves them
	// unreachable by username-addressed push until their next login, not
	// logged out.
	if err := d.store.Register(ctx, req.Username, clientID); err != nil {
		logger.WarnCtx(ctx, "Directory registration failed", "username", req.Username, "error", err)
	}

	logger.InfoCtx(ctx, "Login successful", "username", req.Username, "role", req.Role)
	return packet.Success("Login successful")
}

func (d *Dispatcher) handleLogout(ctx context.Context, clientID string, req *packet.Logout) packet.Response {
	if _, err := d.store.LookupClientID(ctx, req.Teacher); err != nil {
		if errors.Is(err, store.ErrClientNotFound) {
			logger.InfoCtx(ctx, "Logout rejected, user not logged in", "username", req.Teacher)
			return packet.Error(fmt.Sprintf("User '%s' is not logged in.", req.Teacher))
		}
		logger.ErrorCtx(ctx, "Directory lookup failed during logout", "username", req.Teacher, "error", err)
		return packet.Error("Internal server error during logout")
	}

	// Room deletion failures only warn: the logout still proceeds and the
	// room can be cleaned up manually.
	if err := d.store.DeleteRoom(ctx, req.RoomID); err != nil {
		logger.WarnCtx(ctx, "Room deletion failed during logout",
			"room_id", req.RoomID, "username", req.Teacher, "error", err)
	}
	if err := d.store.UnregisterUsername(ctx, req.Teacher); err != nil {
		logger.WarnCtx(ctx, "Directory unregister failed during logout", "username", req.Teacher, "error", err)
	}

	logger.InfoCtx(ctx, "Logout successful", "username", req.Teacher, "room_id", req.RoomID)
	return packet.Success(fmt.Sprintf("User '%s' logged out and room '%s' deleted.", req.Teacher, req.RoomID))
}

func (d *Dispatcher) handleCreateRoom(ctx context.Context, clientID string, req *packet.CreateRoom) packet.Response {
	if _, err := d.store.LookupClientID(ctx, req.Teacher); err != nil {
		if errors.Is(err, store.ErrClientNotFound) {
			logger.InfoCtx(ctx, "Room creation rejected, user not logged in",
				"username", req.Teacher, "room_id", req.RoomID)
			return packet.Error("User is not logged in")
		}
		logger.ErrorCtx(ctx, "Directory lookup failed during room creation", "username", req.Teacher, "error", err)
		return packet.Error("Internal server error during room creation")
	}

	if _, err := d.store.CreateRoom(ctx, req.RoomID, req.Teacher); err != nil {
		logger.WarnCtx(ctx, "Room creation failed",
			"room_id", req.RoomID, "teacher", req.Teacher, "error", err)
		return packet.Error("Room already exists or error occurred")
	}

	logger.InfoCtx(ctx, "Room created", "room_id", req.RoomID, "teacher", req.Teacher)
	return packet.Success("Room created successfully")
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, clientID string, req *packet.JoinRoom) packet.Response {
	if err := d.store.AddParticipant(ctx, req.RoomID, req.Username, req.StudentName, req.MSSV); err != nil {
		logger.WarnCtx(ctx, "Join room failed",
			"room_id", req.RoomID, "username", req.Username, "error", err)
		return packet.Error("Failed to join room. Check if the room and user exist.")
	}

	logger.InfoCtx(ctx, "Student joined room", "room_id", req.RoomID, "username", req.Username)
	return packet.Success(fmt.Sprintf("Student '%s' joined room '%s'.", req.StudentName, req.RoomID))
}

func (d *Dispatcher) handleRefresh(ctx context.Context, clientID string, req *packet.Refresh) packet.RefreshResponse {
	rows, err := d.store.ListParticipants(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return packet.RefreshResponse{
				Status:  packet.StatusError,
				Message: fmt.Sprintf("Room '%s' not found.", req.RoomID),
			}
		}
		logger.ErrorCtx(ctx, "Participant listing failed", "room_id", req.RoomID, "error", err)
		return packet.RefreshResponse{
			Status:  packet.StatusError,
			Message: "Internal server error during refresh",
		}
	}

	participants := make([]packet.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, packet.Participant{
			Username:    row.StudentUsername,
			StudentName: row.StudentName,
			MSSV:        row.MSSV,
		})
	}

	logger.DebugCtx(ctx, "Room refreshed",
		"room_id", req.RoomID, "participants", len(participants))
	return packet.RefreshResponse{
		Status:       packet.StatusSuccess,
		Message:      fmt.Sprintf("Found %d participant(s) in room '%s'.", len(participants), req.RoomID),
		Participants: participants,
	}
}

func (d *Dispatcher) handleNotify(ctx context.Context, clientID string, req *packet.Notify, push PushFunc) packet.Response {
	telemetry.SetAttributes(ctx, telemetry.RoomID(req.RoomID))

	teacher, err := d.store.RoomTeacher(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return packet.Error(fmt.Sprintf("Room '%s' does not exist or is invalid.", req.RoomID))
		}
		logger.ErrorCtx(ctx, "Room lookup failed during notify", "room_id", req.RoomID, "error", err)
		return packet.Error(fmt.Sprintf("Internal server error while processing notification for room '%s'.", req.RoomID))
	}

	// Only the room's teacher may broadcast, verified through the caller's
	// directory registration rather than anything the client claims.
	sender, err := d.store.LookupUsername(ctx, clientID)
	if err != nil {
		logger.WarnCtx(ctx, "Notify sender has no directory mapping", "error", err)
		return packet.Error("Sender identity could not be verified.")
	}
	if sender != teacher {
		logger.WarnCtx(ctx, "Notify rejected for non-teacher",
			"room_id", req.RoomID, "sender", sender, "teacher", teacher)
		return packet.Error("Only the teacher can send notifications in this room.")
	}

	rows, err := d.store.ListParticipants(ctx, req.RoomID)
	if err != nil {
		logger.ErrorCtx(ctx, "Participant listing failed during notify", "room_id", req.RoomID, "error", err)
		return packet.Error(fmt.Sprintf("Internal server error while processing notification for room '%s'.", req.RoomID))
	}
	if len(rows) == 0 {
		return packet.Success(fmt.Sprintf("No users currently in room '%s' to notify.", req.RoomID))
	}

	note := packet.NewNotification(req.RoomID, req.Message, teacher)

	sent := 0
	var offline []string
	var sendErrors []string
	for _, row := range rows {
		targetID, err := d.store.LookupClientID(ctx, row.StudentUsername)
		if err != nil {
			// Not registered in the directory: the participant is offline
			// (or the lookup failed, which reads the same to the teacher).
			offline = append(offline, row.StudentUsername)
			continue
		}

		if err := push(targetID, note); err != nil {
			logger.WarnCtx(ctx, "Notification push failed",
				"room_id", req.RoomID, "username", row.StudentUsername,
				"target_client_id", targetID, "error", err)
			sendErrors = append(sendErrors,
				fmt.Sprintf("Failed to send notification to user '%s': %v", row.StudentUsername, err))
			continue
		}
		d.recordPush(ctx, packet.PushNotification, targetID)
		sent++
	}

	online := len(rows) - len(offline)
	message := fmt.Sprintf("Notification processed for room '%s'. Attempted send to %d/%d online recipients.",
		req.RoomID, sent, online)
	if len(offline) > 0 {
		message += fmt.Sprintf(" (%d users offline: %s)", len(offline), strings.Join(offline, ", "))
	}

	if len(sendErrors) > 0 {
		return packet.Error(message + " Errors: " + strings.Join(sendErrors, "; "))
	}

	logger.InfoCtx(ctx, "Notification broadcast",
		"room_id", req.RoomID, "sent", sent, "offline", len(offline))
	return packet.Success(message)
}

func (d *Dispatcher) handleStreaming(ctx context.Context, clientID string, req *packet.Streaming, push PushFunc) packet.Response {
	targetID, err := d.store.LookupClientID(ctx, req.TargetUsername)
	if err != nil {
		if !errors.Is(err, store.ErrClientNotFound) {
			logger.ErrorCtx(ctx, "Directory lookup failed during streaming request",
				"target", req.TargetUsername, "error", err)
		}
		return packet.Error(fmt.Sprintf("User '%s' is currently offline or does not exist.", req.TargetUsername))
	}
	if targetID == clientID {
		return packet.Error("You cannot initiate a stream from yourself.")
	}

	if err := push(targetID, packet.NewStartStreaming(clientID)); err != nil {
		logger.WarnCtx(ctx, "Streaming request push failed",
			"target", req.TargetUsername, "target_client_id", targetID, "error", err)
		return packet.Error(fmt.Sprintf("Failed to send streaming request to '%s'. They might have just disconnected.", req.TargetUsername))
	}
	d.recordPush(ctx, packet.PushStartStreaming, targetID)

	logger.InfoCtx(ctx, "Streaming request forwarded", "target", req.TargetUsername)
	return packet.Success(fmt.Sprintf("Streaming request successfully sent to user '%s'. Waiting for them to accept and send data.", req.TargetUsername))
}

// handleScreenData relays one capture to the client that asked for the
// stream. The requester's id arrived in the start_streaming push and is
// echoed back by the streaming client, so no directory lookup is needed.
func (d *Dispatcher) handleScreenData(ctx context.Context, clientID string, req *packet.ScreenData, push PushFunc) packet.Response {
	if err := push(req.SenderClientID, packet.NewScreenData(req.ImageData)); err != nil {
		logger.WarnCtx(ctx, "Screen data push failed", "to", req.SenderClientID, "error", err)
		return packet.Error("Internal error while forwarding screen data.")
	}
	d.recordPush(ctx, packet.PushScreenData, req.SenderClientID)

	return packet.Success("Screen data forwarded to teacher.")
}

func (d *Dispatcher) handleRequestApp(ctx context.Context, clientID string, req *packet.RequestApp, push PushFunc) packet.Response {
	targetID, err := d.store.LookupClientID(ctx, req.TargetUsername)
	if err != nil {
		if !errors.Is(err, store.ErrClientNotFound) {
			logger.ErrorCtx(ctx, "Directory lookup failed during app list request",
				"target", req.TargetUsername, "error", err)
		}
		return packet.Error(fmt.Sprintf("User '%s' is currently offline or does not exist.", req.TargetUsername))
	}
	if targetID == clientID {
		return packet.Error("You cannot request applications from yourself.")
	}

	if err := push(targetID, packet.NewRequestApp(clientID)); err != nil {
		logger.WarnCtx(ctx, "App list request push failed",
			"target", req.TargetUsername, "target_client_id", targetID, "error", err)
		return packet.Error(fmt.Sprintf("Failed to send application list request to '%s'. They might have just disconnected.", req.TargetUsername))
	}
	d.recordPush(ctx, packet.PushRequestApp, targetID)

	logger.InfoCtx(ctx, "App list request forwarded", "target", req.TargetUsername)
	return packet.Success(fmt.Sprintf("Application list request sent to user '%s'.", req.TargetUsername))
}

func (d *Dispatcher) handleReturnApp(ctx context.Context, clientID string, req *packet.ReturnApp, push PushFunc) packet.Response {
	if err := push(req.SenderClientID, packet.NewReturnApp(req.AppData)); err != nil {
		logger.WarnCtx(ctx, "App list push failed", "to", req.SenderClientID, "error", err)
		return packet.Error("Internal error while forwarding application list.")
	}
	d.recordPush(ctx, packet.PushReturnApp, req.SenderClientID)

	return packet.Success("Application list forwarded to teacher.")
}
