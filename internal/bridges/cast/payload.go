package cast

// Message types carried in JSON payloads.
const (
	typeConnect        = "CONNECT"
	typeClose          = "CLOSE"
	typePing           = "PING"
	typePong           = "PONG"
	typeGetStatus      = "GET_STATUS"
	typeSetVolume      = "SET_VOLUME"
	typeLaunch         = "LAUNCH"
	typeReceiverStatus = "RECEIVER_STATUS"
	typeLaunchError    = "LAUNCH_ERROR"
	typeInvalidRequest = "INVALID_REQUEST"
)

// header is the part shared by every JSON payload.
type header struct {
	Type      string `json:"type"`
	RequestID int64  `json:"requestId,omitempty"`
}

type setVolumeRequest struct {
	header
	Volume Volume `json:"volume"`
}

type launchRequest struct {
	header
	AppID string `json:"appId"`
}

// Volume is the receiver's output level.
type Volume struct {
	Level *float64 `json:"level,omitempty"`
	Muted *bool    `json:"muted,omitempty"`
}

// Application is a running receiver application.
type Application struct {
	AppID       string `json:"appId"`
	DisplayName string `json:"displayName"`
	SessionID   string `json:"sessionId"`
	StatusText  string `json:"statusText"`
}

// ReceiverStatus is the receiver's self-description.
type ReceiverStatus struct {
	Applications []Application `json:"applications,omitempty"`
	Volume       Volume        `json:"volume"`
}

// receiverResponse is any reply on the receiver namespace.
type receiverResponse struct {
	header
	Status ReceiverStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
}
