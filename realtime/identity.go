package realtime

import "strings"

// Role is the trust level attached to a verified connection.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the verified principal behind a connection. It never changes
// for the lifetime of the connection.
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the identity was verified in the admin keyspace.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Valid reports whether the identity names a user.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.ID) != ""
}

// Topic names a fan-out group of connections.
type Topic string

// AdminsTopic groups every connection authenticated as an administrator.
const AdminsTopic Topic = "admins"

// UserTopic returns the topic holding every connection of userID.
func UserTopic(userID string) Topic {
	return Topic("user:" + userID)
}

// TopicsFor derives the topics a connection joins at attach time.
func TopicsFor(identity Identity) []Topic {
	if !identity.Valid() {
		return nil
	}
	topics := []Topic{UserTopic(identity.ID)}
	if identity.IsAdmin() {
		topics = append(topics, AdminsTopic)
	}
	return topics
}
