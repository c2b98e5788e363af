package events

import (
	"fmt"
	"slices"

	"github.com/go-errors/errors"
)

const CommandSyntax = "ztreamy-command"

// Control commands understood at the middleware layer.
const (
	CommandSetCompression      = "Set-Compression"
	CommandSetCompressionRDZ   = "Set-Compression-rdz"
	CommandTestConnection      = "Test-Connection"
	CommandEventSourceStarted  = "Event-Source-Started"
	CommandEventSourceFinished = "Event-Source-Finished"
	CommandStreamFinished      = "Stream-Finished"
)

var ValidCommands = []string{
	CommandSetCompression,
	CommandSetCompressionRDZ,
	CommandTestConnection,
	CommandEventSourceStarted,
	CommandEventSourceFinished,
	CommandStreamFinished,
}

var ErrUnsupportedCommand error = errors.Errorf("unsupported command")

func init() {
	RegisterSyntax(CommandSyntax, commandFactory, true)
}

// NewCommand creates a command event. The command name is the event body.
func NewCommand(sourceID, command string, opts ...Option) (*Event, error) {
	if !slices.Contains(ValidCommands, command) {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnsupportedCommand, command))
	}

	opts = append([]Option{WithBody(command)}, opts...)

	return NewEvent(sourceID, CommandSyntax, "", "", opts...), nil
}

// Command returns the command carried by a command event.
func Command(e *Event) (string, bool) {
	if e.Syntax != CommandSyntax {
		return "", false
	}

	command, ok := e.Body.(string)
	return command, ok
}

func commandFactory(sourceID, syntax, body string, opts ...Option) (*Event, error) {
	if syntax != CommandSyntax {
		return nil, errors.Errorf("unsupported syntax in command: %s", syntax)
	}

	return NewCommand(sourceID, body, opts...)
}
