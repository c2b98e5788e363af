package events

import "github.com/imunhatep/gocollection/slice"

// Mapper is anything that can produce the mapping representation of an event.
type Mapper interface {
	ToMap() *Map
}

// Serializer turns events into bytes of a single content type.
type Serializer interface {
	ContentType() string
	Serialize(event Mapper) ([]byte, error)
	SerializeBatch(events []Mapper) ([]byte, error)
}

// Decoder reads back the mapping representation written by a Serializer.
type Decoder interface {
	Decode(data []byte) (*Map, error)
	DecodeBatch(data []byte) ([]*Map, error)
}

// SerializeAll serializes a batch of any concrete Mapper type, e.g. []*Event.
func SerializeAll[E Mapper](s Serializer, events []E) ([]byte, error) {
	return s.SerializeBatch(AsMappers(events))
}

func AsMappers[E Mapper](events []E) []Mapper {
	return slice.Map(events, func(e E) Mapper { return e })
}
