package realtime

import (
	"encoding/json"
	"time"
)

// Kind identifies an event variant.
type Kind string

const (
	KindUserBanned     Kind = "USER_BANNED"
	KindUserUnbanned   Kind = "USER_UNBANNED"
	KindForceLogout    Kind = "FORCE_LOGOUT"
	KindAdminBroadcast Kind = "ADMIN_BROADCAST"
	KindStatusChanged  Kind = "STATUS_CHANGED"
)

// Wire event names.
const (
	EventUserBanned        = "user_banned"
	EventUserUnbanned      = "user_unbanned"
	EventForceLogout       = "force_logout"
	EventAdminMessage      = "admin_message"
	EventUserStatusChanged = "user_status_changed"
	EventCheckUserStatus   = "check_user_status"
	EventAdminBroadcast    = "admin_broadcast"
	EventPing              = "ping"
	EventPong              = "pong"
	EventError             = "error"
)

// Event is one of UserBanned, UserUnbanned, ForceLogout, AdminMessage or
// StatusChanged. The set is closed.
type Event interface {
	Kind() Kind
	// Name is the event name on the wire.
	Name() string
	// Target is the user the event is about, empty for untargeted messages.
	Target() string
	sealed()
}

// UserBanned tells the user and administrators that an account was banned.
type UserBanned struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	BannedBy  string    `json:"bannedBy"`
	Reason    string    `json:"reason,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind, Name and Target make UserBanned an Event.
func (UserBanned) Kind() Kind       { return KindUserBanned }
func (UserBanned) Name() string     { return EventUserBanned }
func (e UserBanned) Target() string { return e.UserID }
func (UserBanned) sealed()          {}

// MarshalJSON adds the variant kind as the type field.
func (e UserBanned) MarshalJSON() ([]byte, error) {
	type payload UserBanned
	return json.Marshal(struct {
		Type Kind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

// UserUnbanned tells the user and administrators that a ban was lifted.
type UserUnbanned struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UnbannedBy string    `json:"unbannedBy"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Kind, Name and Target make UserUnbanned an Event.
func (UserUnbanned) Kind() Kind       { return KindUserUnbanned }
func (UserUnbanned) Name() string     { return EventUserUnbanned }
func (e UserUnbanned) Target() string { return e.UserID }
func (UserUnbanned) sealed()          {}

// MarshalJSON adds the variant kind as the type field.
func (e UserUnbanned) MarshalJSON() ([]byte, error) {
	type payload UserUnbanned
	return json.Marshal(struct {
		Type Kind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

// ForceLogout ends the sessions of a user.
type ForceLogout struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	LoggedOutBy string    `json:"loggedOutBy"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Kind, Name and Target make ForceLogout an Event.
func (ForceLogout) Kind() Kind       { return KindForceLogout }
func (ForceLogout) Name() string     { return EventForceLogout }
func (e ForceLogout) Target() string { return e.UserID }
func (ForceLogout) sealed()          {}

// MarshalJSON adds the variant kind as the type field.
func (e ForceLogout) MarshalJSON() ([]byte, error) {
	type payload ForceLogout
	return json.Marshal(struct {
		Type Kind `json:"type"`
		payload
	}{e.Kind(), payload(e)})
}

// AdminMessage is a free-form message from an administrator. Without a target
// it goes to the administrators topic.
type AdminMessage struct {
	TargetUserID string    `json:"-"`
	From         string    `json:"from,omitempty"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// Kind, Name and Target make AdminMessage an Event.
func (AdminMessage) Kind() Kind       { return KindAdminBroadcast }
func (AdminMessage) Name() string     { return EventAdminMessage }
func (e AdminMessage) Target() string { return e.TargetUserID }
func (AdminMessage) sealed()          {}

// StatusChanged keeps administrator views in sync. Change names the mutation
// that caused it.
type StatusChanged struct {
	Change    Kind      `json:"type"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Status    string    `json:"status"`
	UpdatedBy string    `json:"updatedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind, Name and Target make StatusChanged an Event.
func (StatusChanged) Kind() Kind       { return KindStatusChanged }
func (StatusChanged) Name() string     { return EventUserStatusChanged }
func (e StatusChanged) Target() string { return e.UserID }
func (StatusChanged) sealed()          {}

// Envelope is the frame exchanged with clients.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode renders event as a wire frame.
func Encode(event Event) ([]byte, error) {
	return EncodeFrame(event.Name(), event)
}

// EncodeFrame renders an arbitrary payload under the given event name.
func EncodeFrame(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}

// Route returns the topics an event is published to.
func Route(event Event) []Topic {
	switch e := event.(type) {
	case UserBanned, UserUnbanned, ForceLogout:
		return []Topic{UserTopic(e.Target()), AdminsTopic}
	case AdminMessage:
		if e.TargetUserID == "" {
			return []Topic{AdminsTopic}
		}
		return []Topic{UserTopic(e.TargetUserID)}
	case StatusChanged:
		return []Topic{AdminsTopic}
	default:
		return nil
	}
}
