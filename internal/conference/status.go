package conference

import "fmt"

// MeetingStatus is the connection status code reported by the SDK.
type MeetingStatus int

const (
	StatusIdle                   MeetingStatus = 0
	StatusConnecting             MeetingStatus = 1
	StatusWaitingForHost         MeetingStatus = 2
	StatusInMeeting              MeetingStatus = 3
	StatusDisconnecting          MeetingStatus = 4
	StatusReconnecting           MeetingStatus = 5
	StatusFailed                 MeetingStatus = 6
	StatusEnded                  MeetingStatus = 7
	StatusUnknown                MeetingStatus = 8
	StatusLocked                 MeetingStatus = 9
	StatusUnlocked               MeetingStatus = 10
	StatusInWaitingRoom          MeetingStatus = 11
	StatusWebinarPromote         MeetingStatus = 12
	StatusWebinarDepromote       MeetingStatus = 13
	StatusJoinBreakoutRoom       MeetingStatus = 14
	StatusLeaveBreakoutRoom      MeetingStatus = 15
	StatusAudioReady             MeetingStatus = 16
	StatusOtherMeetingInProgress MeetingStatus = 17
)

var statusNames = map[MeetingStatus]string{
	StatusIdle:                   "idle",
	StatusConnecting:             "connecting",
	StatusWaitingForHost:         "waiting_for_host",
	StatusInMeeting:              "in_meeting",
	StatusDisconnecting:          "disconnecting",
	StatusReconnecting:           "reconnecting",
	StatusFailed:                 "failed",
	StatusEnded:                  "ended",
	StatusUnknown:                "unknown",
	StatusLocked:                 "locked",
	StatusUnlocked:               "unlocked",
	StatusInWaitingRoom:          "in_waiting_room",
	StatusWebinarPromote:         "webinar_promote",
	StatusWebinarDepromote:       "webinar_depromote",
	StatusJoinBreakoutRoom:       "join_breakout_room",
	StatusLeaveBreakoutRoom:      "leave_breakout_room",
	StatusAudioReady:             "audio_ready",
	StatusOtherMeetingInProgress: "other_meeting_in_progress",
}

func (s MeetingStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// StatusEvent is one connection-status notification. Result carries the
// secondary reason code the SDK attaches to Failed and Ended.
type StatusEvent struct {
	Status MeetingStatus `json:"status"`
	Result int           `json:"result"`
}

// Text renders the status for display in the kiosk UI.
func (e StatusEvent) Text() string {
	switch e.Status {
	case StatusConnecting:
		return "Connecting to meeting..."
	case StatusWaitingForHost:
		return "Waiting for host..."
	case StatusInMeeting:
		return "In meeting"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusReconnecting:
		return "Reconnecting..."
	case StatusInWaitingRoom:
		return "In waiting room..."
	case StatusEnded:
		return fmt.Sprintf("Disconnected: meeting ended with status: %d", e.Result)
	case StatusFailed:
		return fmt.Sprintf("Disconnected: meeting failed with status: %d", e.Result)
	case StatusIdle:
		return "Disconnected"
	default:
		return fmt.Sprintf("Meeting status: %s (result %d)", e.Status, e.Result)
	}
}
