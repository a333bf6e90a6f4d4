package journal

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/m-lab/counters/counters"
	"github.com/m-lab/counters/metrics"
)

// Message is one journal record: the object identifier and the serialized
// object.
type Message struct {
	Key   []byte
	Value []byte
}

// Batch groups the messages delivered together, by object type.
type Batch map[string][]Message

// DecodeError reports a message that could not be decoded.
type DecodeError struct {
	Type string
	Key  []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s object %x: %v", e.Type, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Options configures a Processor.
type Options struct {
	// Netlocs normalizes origin network locations. Nil selects
	// DefaultNetlocs.
	Netlocs NetlocTable

	// CountObjects also counts the distinct message keys of every object
	// type, in a collection named after the type.
	CountObjects bool
}

// Processor dispatches journal batches to the key extractors and merges the
// resulting keys into a Counters backend. It holds no counter state.
type Processor struct {
	counters     counters.Counters
	extractors   map[string]Extractor
	countObjects bool
}

// NewProcessor creates a Processor updating c.
func NewProcessor(c counters.Counters, opts Options) *Processor {
	netlocs := opts.Netlocs
	if netlocs == nil {
		netlocs = DefaultNetlocs
	}
	return &Processor{
		counters:     c,
		extractors:   netlocs.Extractors(),
		countObjects: opts.CountObjects,
	}
}

// Process extracts the keys of every message of the batch and issues one Add
// per collection. Messages that fail to decode and types without an
// extractor are skipped. Errors from the backend do not prevent the other
// collections from being updated; they are all returned.
func (p *Processor) Process(ctx context.Context, batch Batch) error {
	keys := make(map[string][][]byte)
	for typ, msgs := range batch {
		metrics.JournalMessagesTotal.WithLabelValues(typ).Add(float64(len(msgs)))
		if p.countObjects {
			for _, m := range msgs {
				if len(m.Key) > 0 {
					keys[typ] = append(keys[typ], m.Key)
				}
			}
		}

		extract, ok := p.extractors[typ]
		if !ok {
			log.Debugf("no key extractor for %s objects, skipping %d messages", typ, len(msgs))
			continue
		}
		for _, m := range msgs {
			ks, err := extract(m.Value)
			if err != nil {
				log.Warn((&DecodeError{Type: typ, Key: m.Key, Err: err}).Error())
				metrics.JournalDecodeErrorsTotal.WithLabelValues(typ).Inc()
				continue
			}
			for _, k := range ks {
				keys[k.Collection] = append(keys[k.Collection], k.Value)
			}
		}
	}

	collections := make([]string, 0, len(keys))
	for c := range keys {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	var result *multierror.Error
	for _, c := range collections {
		if err := p.counters.Add(ctx, c, keys[c]); err != nil {
			result = multierror.Append(result, fmt.Errorf("adding to %s: %w", c, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		metrics.JournalBatchesTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.JournalBatchesTotal.WithLabelValues("OK").Inc()
	return nil
}
