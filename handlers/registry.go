package handlers

import (
	"fmt"

	"github.com/go-errors/errors"

	"github.com/imunhatep/ztreamy/events"
)

var ErrUnknownFormat error = errors.Errorf("unknown serialization format")

// serializers by short name, as used on the command line
var serializers = map[string]events.Serializer{
	"json":    JSON,
	"gob":     &GobEncoder{},
	"ztreamy": &ZtreamyEncoder{},
}

func Names() []string {
	return []string{"json", "gob", "ztreamy"}
}

func ForName(name string) (events.Serializer, error) {
	s, ok := serializers[name]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnknownFormat, name))
	}

	return s, nil
}

func ForContentType(contentType string) (events.Serializer, error) {
	for _, name := range Names() {
		if s := serializers[name]; s.ContentType() == contentType {
			return s, nil
		}
	}

	return nil, errors.New(fmt.Errorf("%w: %s", ErrUnknownFormat, contentType))
}
