package websocket

// Channel names reviewers can subscribe to. "all" receives every event.
const (
	ChannelAll        = "all"
	ChannelComplaints = "complaints"
	ChannelRTI        = "rti"
	ChannelTraffic    = "traffic"
)

// WSMessage is the envelope for every message on the reviewer feed.
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	UserID  string      `json:"user_id,omitempty"`
	Content interface{} `json:"content,omitempty"`
}

// PresenceMessage announces a reviewer joining or leaving a channel.
type PresenceMessage struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online", "offline"
}

// SubmissionEvent is pushed when a citizen submission is created or its
// status changes.
type SubmissionEvent struct {
	Reference      string `json:"reference"`
	SubmissionType string `json:"submission_type"` // complaint, rti, traffic_violation
	Status         string `json:"status"`
	UpdatedAt      int64  `json:"updated_at"`
}

// channelForType maps a submission type to its channel name.
func channelForType(submissionType string) string {
	switch submissionType {
	case "complaint":
		return ChannelComplaints
	case "rti":
		return ChannelRTI
	case "traffic_violation":
		return ChannelTraffic
	default:
		return ChannelAll
	}
}

// IsValidChannel reports whether reviewers may subscribe to the channel.
func IsValidChannel(channel string) bool {
	switch channel {
	case ChannelAll, ChannelComplaints, ChannelRTI, ChannelTraffic:
		return true
	}
	return false
}
