package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeUserBanned(t *testing.T) {
	frame, err := Encode(UserBanned{
		UserID:    "alice",
		UserName:  "Alice",
		BannedBy:  "Administrator",
		Message:   MessageBanned,
		Timestamp: fixedClock(),
	})
	require.NoError(t, err)

	event, data := decodeData(t, frame)
	assert.Equal(t, EventUserBanned, event)
	assert.Equal(t, "USER_BANNED", data["type"])
	assert.Equal(t, "alice", data["userId"])
	assert.Equal(t, "Alice", data["userName"])
	assert.Equal(t, "Administrator", data["bannedBy"])
	assert.Equal(t, MessageBanned, data["message"])
	assert.Equal(t, "2024-05-01T12:00:00Z", data["timestamp"])
	assert.NotContains(t, data, "reason")
}

func TestEncodeStatusChanged(t *testing.T) {
	frame, err := Encode(StatusChanged{
		Change:    KindUserUnbanned,
		UserID:    "alice",
		Status:    StatusValueActive,
		UpdatedBy: "Administrator",
		Timestamp: fixedClock(),
	})
	require.NoError(t, err)

	event, data := decodeData(t, frame)
	assert.Equal(t, EventUserStatusChanged, event)
	assert.Equal(t, "USER_UNBANNED", data["type"])
	assert.Equal(t, "active", data["status"])
	assert.Equal(t, "Administrator", data["updatedBy"])
}

func TestEncodeAdminMessageHidesTarget(t *testing.T) {
	frame, err := Encode(AdminMessage{TargetUserID: "alice", Message: "hello", Timestamp: fixedClock()})
	require.NoError(t, err)

	event, data := decodeData(t, frame)
	assert.Equal(t, EventAdminMessage, event)
	assert.Equal(t, "hello", data["message"])
	assert.NotContains(t, data, "TargetUserID")
	assert.NotContains(t, data, "type")
}

func TestRoute(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		want  []Topic
	}{
		{"ban", UserBanned{UserID: "alice"}, []Topic{"user:alice", AdminsTopic}},
		{"unban", UserUnbanned{UserID: "alice"}, []Topic{"user:alice", AdminsTopic}},
		{"force logout", ForceLogout{UserID: "alice"}, []Topic{"user:alice", AdminsTopic}},
		{"targeted message", AdminMessage{TargetUserID: "alice"}, []Topic{"user:alice"}},
		{"untargeted message", AdminMessage{}, []Topic{AdminsTopic}},
		{"status change", StatusChanged{UserID: "alice"}, []Topic{AdminsTopic}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Route(tc.event))
		})
	}
}
