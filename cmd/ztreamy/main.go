package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/go-errors/errors"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/imunhatep/ztreamy"
	"github.com/imunhatep/ztreamy/events"
	"github.com/imunhatep/ztreamy/handlers"
)

type options struct {
	Format        string `short:"f" long:"format" default:"json" choice:"json" choice:"gob" choice:"ztreamy" description:"Output format"`
	SourceID      string `long:"source-id" description:"Source id of the generated events, random when empty"`
	ApplicationID string `long:"application-id" default:"Ztreamy-test" description:"Application id of the generated events"`
	Syntax        string `long:"syntax" default:"text/plain" description:"Syntax of the generated events"`
	EventType     string `long:"event-type" default:"Test event" description:"Event type of the generated events"`
	Body          string `long:"body" default:"Test body." description:"Body of the generated events"`
	TestEvent     bool   `long:"test-event" description:"Generate timestamp stamped test events instead"`
	Count         int    `short:"n" long:"count" default:"1" description:"Number of events, more than one writes a batch"`
	Decode        bool   `long:"decode" description:"Read a ztreamy event stream from stdin and write it in the output format"`
	Verbose       bool   `short:"v" long:"verbose" description:"Log at debug level"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts, prometheus.DefaultRegisterer, os.Stdin, os.Stdout); err != nil {
		if stack, ok := err.(*errors.Error); ok {
			log.Debug().Msg(stack.ErrorStack())
		}
		log.Fatal().Err(err).Msg("[main] failed")
	}
}

func run(ctx context.Context, opts options, registerer prometheus.Registerer, in io.Reader, out io.Writer) error {
	format, err := handlers.ForName(opts.Format)
	if err != nil {
		return err
	}

	serializer := ztreamy.Instrument(format, ztreamy.NewSerializerMetrics(registerer))

	var batch []*events.Event
	if opts.Decode {
		batch, err = decode(ctx, in)
	} else {
		batch, err = generate(opts)
	}
	if err != nil {
		return err
	}

	var data []byte
	if len(batch) == 1 && !opts.Decode {
		data, err = serializer.Serialize(batch[0])
	} else {
		data, err = events.SerializeAll(serializer, batch)
	}
	if err != nil {
		return err
	}

	log.Debug().Str("contentType", serializer.ContentType()).Int("events", len(batch)).Int("size", len(data)).Msg("[main] serialized")

	if _, err := out.Write(data); err != nil {
		return errors.New(err)
	}

	return nil
}

func generate(opts options) ([]*events.Event, error) {
	if opts.Count < 1 {
		return nil, errors.Errorf("count must be positive, got %d", opts.Count)
	}

	sourceID := opts.SourceID
	if sourceID == "" {
		sourceID = events.CreateUUID()
	}

	batch := make([]*events.Event, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		if opts.TestEvent {
			batch = append(batch, events.NewTestEvent(sourceID))
			continue
		}

		batch = append(batch, events.NewEvent(sourceID, opts.Syntax, opts.ApplicationID, opts.EventType, events.WithBody(opts.Body)))
	}

	return batch, nil
}

func decode(ctx context.Context, in io.Reader) ([]*events.Event, error) {
	ch, errs := handlers.NewDeserializer().Stream(ctx, in, true)
	reader := handlers.NewStreamReader(ch, errs)

	batch := reader.Read()
	if err := reader.Err(); err != nil {
		return nil, err
	}

	log.Info().Int("events", len(batch)).Msg("[main] events decoded")

	return batch, nil
}
