package handlers

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// AsyncReader drains a channel in the background and hands out everything it received
// once the channel is closed. Paired with an error channel it collects the output of
// Deserializer.Stream.
type AsyncReader[T any] struct {
	values []T
	err    error
	wg     sync.WaitGroup
}

func NewAsyncReader[T any](ch <-chan T) *AsyncReader[T] {
	return NewStreamReader(ch, nil)
}

// NewStreamReader also waits for errs to close and keeps its first error.
func NewStreamReader[T any](ch <-chan T, errs <-chan error) *AsyncReader[T] {
	cr := &AsyncReader[T]{
		values: []T{},
	}

	cr.wg.Add(1)
	go cr.await(ch, errs)

	return cr
}

func (cr *AsyncReader[T]) await(ch <-chan T, errs <-chan error) {
	defer cr.wg.Done()

	log.Trace().Msg("[AsyncReader.await] reading channel..")
	for v := range ch {
		cr.values = append(cr.values, v)
	}

	if errs != nil {
		for err := range errs {
			if cr.err == nil {
				cr.err = err
			}
		}
	}

	log.Trace().Int("len", len(cr.values)).Err(cr.err).Msg("[AsyncReader.await] values found")
}

// Read blocks until the channel is closed and returns a copy of the values.
func (cr *AsyncReader[T]) Read() []T {
	cr.wg.Wait()

	result := make([]T, len(cr.values))
	copy(result, cr.values)

	return result
}

// Err blocks like Read and returns the first error received, if any.
func (cr *AsyncReader[T]) Err() error {
	cr.wg.Wait()

	return cr.err
}
