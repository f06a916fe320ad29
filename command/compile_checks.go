package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginAuthMessage]        = (*BeginAuthCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]       = (*DisconnectCommand)(nil)
	_ gocmd.Commander[CreatePushJobMessage]    = (*CreatePushJobCommand)(nil)
	_ gocmd.Commander[AdvancePushJobMessage]   = (*AdvancePushJobCommand)(nil)
)
