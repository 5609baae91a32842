package packet

// Login authenticates a user and binds their username to the connection's
// client id in the shared directory.
type Login struct {
	Type     string `json:"type"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"required,oneof=teacher student"`
}

func (*Login) RequestType() string { return TypeLogin }

// Logout releases the teacher's directory registration and deletes their room.
type Logout struct {
	Type    string `json:"type"`
	Teacher string `json:"teacher" validate:"required"`
	RoomID  string `json:"room_id" validate:"required"`
}

func (*Logout) RequestType() string { return TypeLogout }

// CreateRoom creates a classroom owned by a logged-in teacher.
type CreateRoom struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id" validate:"required"`
	Teacher string `json:"teacher" validate:"required"`
}

func (*CreateRoom) RequestType() string { return TypeCreateRoom }

// JoinRoom enrolls a student into a room.
type JoinRoom struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id"      validate:"required"`
	Username    string `json:"username"     validate:"required"`
	MSSV        string `json:"mssv"         validate:"required"`
	StudentName string `json:"student_name" validate:"required"`
}

func (*JoinRoom) RequestType() string { return TypeJoinRoom }

// Refresh asks for the current participant list of a room.
type Refresh struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id" validate:"required"`
}

func (*Refresh) RequestType() string { return TypeRefresh }

// Notify broadcasts a teacher announcement to every participant of a room.
type Notify struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"      validate:"required"`
	Message string `json:"noti_message" validate:"required"`
}

func (*Notify) RequestType() string { return TypeNotify }

// Streaming asks a target user to start sending their screen.
type Streaming struct {
	Type           string `json:"type"`
	TargetUsername string `json:"target_username" validate:"required"`
}

func (*Streaming) RequestType() string { return TypeStreaming }

// ScreenData carries one screen capture back to the client that requested
// the stream. SenderClientID is the requester's client id, echoed from the
// start_streaming push.
type ScreenData struct {
	Type           string `json:"type"`
	ImageData      string `json:"image_data"       validate:"required"`
	SenderClientID string `json:"sender_client_id" validate:"required"`
}

func (*ScreenData) RequestType() string { return TypeScreenData }

// RequestApp asks a target user for their open application list.
type RequestApp struct {
	Type           string `json:"type"`
	TargetUsername string `json:"target_username" validate:"required"`
}

func (*RequestApp) RequestType() string { return TypeRequestApp }

// AppEntry describes one running application. Both fields may be empty,
// some processes expose no window title.
type AppEntry struct {
	ProcessName     string `json:"process_name"`
	MainWindowTitle string `json:"main_window_title"`
}

// ReturnApp carries the application list back to the client that asked for
// it. AppData must be present but may be an empty list.
type ReturnApp struct {
	Type           string     `json:"type"`
	SenderClientID string     `json:"sender_client_id" validate:"required"`
	AppData        []AppEntry `json:"app_data"         validate:"required"`
}

func (*ReturnApp) RequestType() string { return TypeReturnApp }
