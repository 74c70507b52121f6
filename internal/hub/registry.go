package hub

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

// UserState is the registry's record of one user. It stores the RoomID, not
// a room pointer, so a user and their room never reference each other
// directly. All access runs under the hub's exclusive section.
type UserState struct {
	ID         string
	Conn       Sender
	Nickname   string
	Preference protocol.Modality
	Filter     protocol.Filter
	RoomID     string
	// QueuedModality is empty when the user is not waiting.
	QueuedModality protocol.Modality
	LastSeen       time.Time

	lastPresenceAt time.Time
}

// DisplayName is what the partner sees.
func (u *UserState) DisplayName() string {
	if u.Nickname == "" {
		return "Anonymous"
	}
	return u.Nickname
}

// userRegistry maps UserIDs to their state and live connections. A user with
// no connection and no room is removed entirely.
type userRegistry struct {
	users  map[string]*UserState
	byConn map[uuid.UUID]string
}

func newUserRegistry() *userRegistry {
	return &userRegistry{
		users:  make(map[string]*UserState),
		byConn: make(map[uuid.UUID]string),
	}
}

// register associates the user with a live connection, creating the state on
// first sight. Returns the replaced connection when an older one existed.
func (r *userRegistry) register(userID string, conn Sender) Sender {
	user, ok := r.users[userID]
	if !ok {
		user = &UserState{ID: userID}
		r.users[userID] = user
	}

	old := user.Conn
	if old != nil {
		delete(r.byConn, old.ID())
	}
	user.Conn = conn
	r.byConn[conn.ID()] = userID
	return old
}

// deregister removes the user's connection only when the given connection is
// still the registered one; stale epochs are ignored. The state itself is
// dropped once the user has neither connection nor room.
func (r *userRegistry) deregister(userID string, connID uuid.UUID) bool {
	user, ok := r.users[userID]
	if !ok || user.Conn == nil || user.Conn.ID() != connID {
		return false
	}
	delete(r.byConn, connID)
	user.Conn = nil
	if user.RoomID == "" {
		delete(r.users, userID)
	}
	return true
}

// remove drops the user's state unconditionally (logout path).
func (r *userRegistry) remove(userID string) {
	user, ok := r.users[userID]
	if !ok {
		return
	}
	if user.Conn != nil {
		delete(r.byConn, user.Conn.ID())
	}
	delete(r.users, userID)
}

func (r *userRegistry) get(userID string) (*UserState, bool) {
	user, ok := r.users[userID]
	return user, ok
}

func (r *userRegistry) byConnID(connID uuid.UUID) *UserState {
	userID, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	return r.users[userID]
}

// hasLiveConn reports whether the user is reachable for broadcast.
func (r *userRegistry) hasLiveConn(userID string) bool {
	user, ok := r.users[userID]
	return ok && user.Conn != nil
}

func (r *userRegistry) all() map[string]*UserState {
	return r.users
}

// snapshotActive returns the sorted set of users with a live connection.
func (r *userRegistry) snapshotActive() []string {
	active := make([]string, 0, len(r.users))
	for id, user := range r.users {
		if user.Conn != nil {
			active = append(active, id)
		}
	}
	sort.Strings(active)
	return active
}
