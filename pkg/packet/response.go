package packet

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Push type discriminators. Pushes reuse the request discriminator where a
// push answers a request of the same name (screen_data, return_app).
const (
	PushNotification   = "notification"
	PushStartStreaming = "start_streaming"
	PushScreenData     = "screen_data"
	PushRequestApp     = "request_app"
	PushReturnApp      = "return_app"
)

// Response is the reply payload for every request.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Success builds a success response.
func Success(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

// Error builds an error response.
func Error(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// Participant is one row of a refresh response.
type Participant struct {
	Username    string `json:"username"`
	StudentName string `json:"student_name"`
	MSSV        string `json:"mssv"`
}

// RefreshResponse is the reply payload for refresh requests. Participants
// is always present on success, empty list included.
type RefreshResponse struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	Participants []Participant `json:"participants"`
}

// NotificationPush is delivered to every online participant of a room when
// its teacher sends an announcement.
type NotificationPush struct {
	Type           string `json:"type"`
	RoomID         string `json:"room_id"`
	Message        string `json:"message"`
	SenderUsername string `json:"sender_username"`
}

// NewNotification builds a notification push.
func NewNotification(roomID, message, senderUsername string) NotificationPush {
	return NotificationPush{
		Type:           PushNotification,
		RoomID:         roomID,
		Message:        message,
		SenderUsername: senderUsername,
	}
}

// StartStreamingPush asks the receiving client to begin streaming their
// screen to SenderClientID.
type StartStreamingPush struct {
	Type           string `json:"type"`
	SenderClientID string `json:"sender_client_id"`
}

// NewStartStreaming builds a start_streaming push.
func NewStartStreaming(senderClientID string) StartStreamingPush {
	return StartStreamingPush{Type: PushStartStreaming, SenderClientID: senderClientID}
}

// ScreenDataPush forwards one screen capture to the client that requested
// the stream.
type ScreenDataPush struct {
	Type      string `json:"type"`
	ImageData string `json:"image_data"`
}

// NewScreenData builds a screen_data push.
func NewScreenData(imageData string) ScreenDataPush {
	return ScreenDataPush{Type: PushScreenData, ImageData: imageData}
}

// RequestAppPush asks the receiving client for their application list.
type RequestAppPush struct {
	Type           string `json:"type"`
	SenderClientID string `json:"sender_client_id"`
}

// NewRequestApp builds a request_app push.
func NewRequestApp(senderClientID string) RequestAppPush {
	return RequestAppPush{Type: PushRequestApp, SenderClientID: senderClientID}
}

// ReturnAppPush forwards an application list to the client that asked for it.
type ReturnAppPush struct {
	Type    string     `json:"type"`
	AppData []AppEntry `json:"app_data"`
}

// NewReturnApp builds a return_app push.
func NewReturnApp(appData []AppEntry) ReturnAppPush {
	return ReturnAppPush{Type: PushReturnApp, AppData: appData}
}
