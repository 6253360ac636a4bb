package mongodb

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Server error code returned by createUser when the user already exists.
const userAlreadyExistsCode = 51003

type NotFoundError struct {
	name string
	t    string
}

func NewNotFoundError(t, name string) NotFoundError {
	return NotFoundError{name: name, t: t}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.t, e.name)
}

type TooManyError struct {
	t string
}

func (e TooManyError) Error() string {
	return fmt.Sprintf("found too many %ss", e.t)
}

type FailedCommandError struct {
	Cmd string
}

func (e FailedCommandError) Error() string {
	return e.Cmd + " command failed"
}

// AlreadyExistsError wraps the server error unchanged.
type AlreadyExistsError struct {
	Username string
	Database string
	Err      error
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("user %s already exists on %s: %v", e.Username, e.Database, e.Err)
}

func (e AlreadyExistsError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	return errors.As(err, &NotFoundError{})
}

func hasServerErrorCode(err error, code int) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorCode(code)
	}

	return false
}
