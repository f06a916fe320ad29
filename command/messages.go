package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-spapi-push/core"
)

const (
	TypeBeginAuth        = "spapi.push.command.auth.begin"
	TypeCompleteCallback = "spapi.push.command.callback.complete"
	TypeDisconnect       = "spapi.push.command.disconnect"
	TypeCreatePushJob    = "spapi.push.command.push_job.create"
	TypeAdvancePushJob   = "spapi.push.command.push_job.advance"
)

type BeginAuthMessage struct {
	Request core.BeginAuthRequest
}

func (BeginAuthMessage) Type() string { return TypeBeginAuth }

func (m BeginAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.State) == "" {
		return fmt.Errorf("command: oauth state is required")
	}
	if strings.TrimSpace(m.Request.SPAPIOAuthCode) == "" {
		return fmt.Errorf("command: spapi oauth code is required")
	}
	if strings.TrimSpace(m.Request.SellingPartnerID) == "" {
		return fmt.Errorf("command: selling partner id is required")
	}
	return nil
}

type DisconnectMessage struct {
	UserID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

type CreatePushJobMessage struct {
	Request core.CreatePushJobRequest
}

func (CreatePushJobMessage) Type() string { return TypeCreatePushJob }

func (m CreatePushJobMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.Request.SKU) == "" {
		return fmt.Errorf("command: sku is required")
	}
	if strings.TrimSpace(m.Request.SessionID) == "" && len(m.Request.ImagePaths) == 0 {
		return fmt.Errorf("command: a session id or image paths are required")
	}
	return nil
}

type AdvancePushJobMessage struct {
	JobID string
}

func (AdvancePushJobMessage) Type() string { return TypeAdvancePushJob }

func (m AdvancePushJobMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return fmt.Errorf("command: job id is required")
	}
	return nil
}
