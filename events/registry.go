package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Factory builds an event of a given syntax from its serialized body.
type Factory func(sourceID, syntax, body string, opts ...Option) (*Event, error)

type registration struct {
	factory     Factory
	alwaysParse bool
}

var (
	registryLock sync.RWMutex
	registry     = map[string]registration{}
)

// RegisterSyntax installs the factory used for events of syntax, replacing any previous
// one. Bodies of alwaysParse syntaxes are parsed even when the caller asks for raw bodies.
func RegisterSyntax(syntax string, factory Factory, alwaysParse bool) {
	registryLock.Lock()
	defer registryLock.Unlock()

	registry[syntax] = registration{factory: factory, alwaysParse: alwaysParse}
	log.Trace().Str("syntax", syntax).Bool("alwaysParse", alwaysParse).Msg("[events.RegisterSyntax] registered")
}

func AlwaysParse(syntax string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()

	return registry[syntax].alwaysParse
}

// Create builds an event through the factory registered for syntax. Unknown syntaxes
// give a plain Event with the body kept as a string.
func Create(sourceID, syntax, body string, opts ...Option) (*Event, error) {
	registryLock.RLock()
	reg, ok := registry[syntax]
	registryLock.RUnlock()

	if !ok {
		return NewRaw(sourceID, syntax, body, opts...), nil
	}

	return reg.factory(sourceID, syntax, body, opts...)
}

// NewRaw creates an event carrying its body unparsed.
func NewRaw(sourceID, syntax, body string, opts ...Option) *Event {
	opts = append([]Option{WithBody(body)}, opts...)

	return NewEvent(sourceID, syntax, "", "", opts...)
}
