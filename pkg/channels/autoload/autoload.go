// Package autoload blank-imports every channel implementation so their
// init() functions register with the channels package just by importing
// this package for its side effects.
package autoload

import (
	_ "github.com/jpetree331/stateful-agent/pkg/channels/discord"
	_ "github.com/jpetree331/stateful-agent/pkg/channels/http"
	_ "github.com/jpetree331/stateful-agent/pkg/channels/telegram"
	_ "github.com/jpetree331/stateful-agent/pkg/channels/web"
)
