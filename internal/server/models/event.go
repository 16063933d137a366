package models

import "strconv"

// EventUserRegistered names the event emitted after a successful registration.
const EventUserRegistered = "UserRegistered"

// RegistrationEvent is the message body published to the broker.
type RegistrationEvent struct {
	Event    string `json:"event"`
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewRegistrationEvent builds the UserRegistered envelope for a new user.
func NewRegistrationEvent(id int64, email, passwordHash string) RegistrationEvent {
	return RegistrationEvent{
		Event:    EventUserRegistered,
		ID:       strconv.FormatInt(id, 10),
		Email:    email,
		Password: passwordHash,
	}
}
