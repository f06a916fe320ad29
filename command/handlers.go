package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-spapi-push/core"
)

// MutatingService is the slice of the core service the commands drive.
type MutatingService interface {
	BeginAuth(ctx context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error)
	CompleteCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error)
	Disconnect(ctx context.Context, userID string) error
	CreatePushJob(ctx context.Context, req core.CreatePushJobRequest) (core.PushJob, error)
	AdvancePushJob(ctx context.Context, jobID string) error
}

type BeginAuthCommand struct {
	service MutatingService
}

func NewBeginAuthCommand(service MutatingService) *BeginAuthCommand {
	return &BeginAuthCommand{service: service}
}

func (c *BeginAuthCommand) Execute(ctx context.Context, msg BeginAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: begin auth service is required")
	}
	out, err := c.service.BeginAuth(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.UserID)
}

type CreatePushJobCommand struct {
	service MutatingService
}

func NewCreatePushJobCommand(service MutatingService) *CreatePushJobCommand {
	return &CreatePushJobCommand{service: service}
}

func (c *CreatePushJobCommand) Execute(ctx context.Context, msg CreatePushJobMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: push job service is required")
	}
	out, err := c.service.CreatePushJob(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdvancePushJobCommand struct {
	service MutatingService
}

func NewAdvancePushJobCommand(service MutatingService) *AdvancePushJobCommand {
	return &AdvancePushJobCommand{service: service}
}

func (c *AdvancePushJobCommand) Execute(ctx context.Context, msg AdvancePushJobMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: push job service is required")
	}
	return c.service.AdvancePushJob(ctx, msg.JobID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
