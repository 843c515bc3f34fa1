package model

import "strconv"

// AuthStatus is the tri-state of the device session.
type AuthStatus int

const (
	// AuthLoading is the state before the persisted session has been read.
	AuthLoading AuthStatus = iota
	// AuthUnauthenticated means no user is logged in.
	AuthUnauthenticated
	// AuthAuthenticated means UserID is logged in.
	AuthAuthenticated
)

func (s AuthStatus) String() string {
	switch s {
	case AuthLoading:
		return "loading"
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthAuthenticated:
		return "authenticated"
	}
	return "AuthStatus(" + strconv.Itoa(int(s)) + ")"
}

// AuthState is the value carried by the session signal.  UserID is only
// meaningful when Status is AuthAuthenticated.
type AuthState struct {
	Status AuthStatus
	UserID uint64
}

// Authenticated reports the logged-in user, if any.
func (s AuthState) Authenticated() (uint64, bool) {
	return s.UserID, s.Status == AuthAuthenticated
}

var (
	Loading         = AuthState{Status: AuthLoading}
	Unauthenticated = AuthState{Status: AuthUnauthenticated}
)

// AuthenticatedAs builds the state for a logged-in user.
func AuthenticatedAs(userID uint64) AuthState {
	return AuthState{Status: AuthAuthenticated, UserID: userID}
}
