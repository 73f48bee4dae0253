package protocol

import (
	"encoding/json"
	"fmt"
)

type UserResponseStatus string

const (
	StatusApproved UserResponseStatus = "Approved"
	StatusRejected UserResponseStatus = "Rejected"
)

// UserResponse is the result of any call that needs human consent. A
// rejection is a normal outcome, not an error.
type UserResponse[T any] struct {
	Status  UserResponseStatus `json:"status"`
	Args    *T                 `json:"args,omitempty"`
	Message string             `json:"message,omitempty"`
}

func Approved[T any](args T) UserResponse[T] {
	return UserResponse[T]{Status: StatusApproved, Args: &args}
}

func Rejected[T any](message string) UserResponse[T] {
	return UserResponse[T]{Status: StatusRejected, Message: message}
}

func (u UserResponse[T]) IsApproved() bool {
	return u.Status == StatusApproved
}

func (u *UserResponse[T]) UnmarshalJSON(b []byte) error {
	type raw UserResponse[T]
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	switch r.Status {
	case StatusApproved:
		if r.Args == nil {
			return fmt.Errorf("approved response without args")
		}
	case StatusRejected:
		r.Args = nil
	default:
		return fmt.Errorf("unknown user response status %q", r.Status)
	}
	*u = UserResponse[T](r)
	return nil
}
