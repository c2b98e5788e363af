package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog/log"

	"github.com/imunhatep/ztreamy/events"
)

const streamChunkSize = 4096

// Stream reads r in chunks and delivers every complete event on the returned channel.
// The channel is closed when r is exhausted, on the first error or when ctx is done.
// The error channel then yields the failure, if any, and is closed as well.
func (d *Deserializer) Stream(ctx context.Context, r io.Reader, parseBody bool) (<-chan *events.Event, <-chan error) {
	out := make(chan *events.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(out)

		if err := d.stream(ctx, r, parseBody, out); err != nil {
			errs <- err
		}
	}()

	return out, errs
}

func (d *Deserializer) stream(ctx context.Context, r io.Reader, parseBody bool, out chan<- *events.Event) error {
	log.Trace().Msg("[Deserializer.stream] reading..")

	chunk := make([]byte, streamChunkSize)
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			parsed, err := d.Deserialize(chunk[:n], parseBody, false)
			for _, event := range parsed {
				select {
				case out <- event:
				case <-ctx.Done():
					log.Trace().Msg("[Deserializer.stream] context cancelled")
					return ctx.Err()
				}
			}
			if err != nil {
				return err
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			log.Error().Err(readErr).Msg("[Deserializer.stream] read failed")
			return errors.New(readErr)
		}
	}

	if d.partial() {
		pending := d.Pending()
		d.Reset()
		return errors.New(fmt.Errorf("%w: truncated event, %d bytes buffered", ErrSpuriousData, pending))
	}

	log.Trace().Msg("[Deserializer.stream] done")

	return nil
}
