package command

import (
	"github.com/goliatone/go-bunq/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[TransferMessage] = (*TransferCommand)(nil)
	_ gocmd.Commander[LinkCardMessage] = (*LinkCardCommand)(nil)

	_ MutatingService = (*core.Client)(nil)
)
