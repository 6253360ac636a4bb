package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	createUserCmd = "createUser"
	getUserCmd    = "usersInfo"
	updateUserCmd = "updateUser"
	deleteUserCmd = "dropUser"
)

// CreateUserCommand returns the createUser document sent to user.Database.
func CreateUserCommand(user *User) bson.D {
	return userCommand(createUserCmd, user)
}

func userCommand(cmd string, user *User) bson.D {
	command := bson.D{
		{Key: cmd, Value: user.Username},
	}

	if user.Password != "" {
		command = append(command, bson.E{Key: "pwd", Value: user.Password})
	}

	// Roles field is required, but empty array is fine
	command = append(command, bson.E{Key: "roles", Value: user.Roles.toBson()})

	if len(user.Mechanisms) > 0 {
		command = append(command, bson.E{Key: "mechanisms", Value: user.Mechanisms})
	}

	return command
}

// CreateUser issues a single createUser command. Server failures are returned as-is,
// except a duplicate user which is wrapped in AlreadyExistsError.
func (c *Client) CreateUser(ctx context.Context, user *User) error {
	tflog.Debug(ctx, "CreateUser", map[string]interface{}{
		"username": user.Username,
		"db":       user.Database,
		"roles":    user.Roles.Names(),
	})

	var result Result

	err := c.runCommand(ctx, user.Database, CreateUserCommand(user), &result)
	if err != nil {
		if hasServerErrorCode(err, userAlreadyExistsCode) {
			return AlreadyExistsError{Username: user.Username, Database: user.Database, Err: err}
		}

		return fmt.Errorf("error creating user: %w", err)
	}

	if result.Ok != 1 {
		return FailedCommandError{createUserCmd}
	}

	return nil
}

func (c *Client) UpsertUser(ctx context.Context, user *User) (*User, error) {
	tflog.Debug(ctx, "UpsertUser", map[string]interface{}{
		"username": user.Username,
		"db":       user.Database,
	})

	var cmd string

	getUserOptions := &GetUserOptions{
		Username: user.Username,
		Database: user.Database,
	}
	_, err := c.GetUser(ctx, getUserOptions)

	switch {
	case errors.As(err, &NotFoundError{}):
		cmd = createUserCmd
	case err == nil:
		cmd = updateUserCmd
	default:
		return nil, err
	}

	result := &Result{}

	err = c.runCommand(ctx, user.Database, userCommand(cmd, user), result)
	if err != nil {
		return nil, err
	}

	if result.Ok != 1 {
		return nil, FailedCommandError{cmd}
	}

	return c.GetUser(ctx, getUserOptions)
}

type GetUserOptions struct {
	Username string
	Database string
}

type getUsersResult struct {
	Ok    int    `bson:"ok"`
	Users []User `bson:"users"`
}

func (c *Client) GetUser(ctx context.Context, options *GetUserOptions) (*User, error) {
	tflog.Debug(ctx, "GetUser", map[string]interface{}{
		"username": options.Username,
		"db":       options.Database,
	})

	command := bson.D{
		{Key: getUserCmd, Value: options.Username},
	}

	var result getUsersResult

	err := c.runCommand(ctx, options.Database, command, &result)
	if err != nil {
		return nil, err
	}

	if result.Ok != 1 {
		return nil, FailedCommandError{getUserCmd}
	}

	userCount := len(result.Users)

	switch {
	case userCount == 0:
		return nil, NewNotFoundError("user", options.Username)
	case userCount > 1:
		return nil, TooManyError{t: "user"}
	}

	return &result.Users[0], nil
}

type DeleteUserOptions struct {
	Username string
	Database string
}

func (c *Client) DeleteUser(ctx context.Context, options *DeleteUserOptions) error {
	tflog.Debug(ctx, "DeleteUser", map[string]interface{}{
		"username": options.Username,
		"db":       options.Database,
	})

	command := bson.D{
		{Key: deleteUserCmd, Value: options.Username},
	}

	result := Result{}

	err := c.runCommand(ctx, options.Database, command, &result)
	if err != nil {
		return err
	}

	if result.Ok != 1 {
		return FailedCommandError{deleteUserCmd}
	}

	return nil
}
