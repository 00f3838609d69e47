// Package sse decodes the council service's event stream: newline-delimited
// frames where significant lines carry the "data: " prefix followed by one
// JSON event. The decoder is transport-agnostic; callers feed it raw byte
// chunks exactly as they arrive.
package sse

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// prefix marks the lines that carry an event. The match is exact; SSE
// comments, blank keep-alives, and field lines without it are skipped.
const prefix = "data: "

// Decoder is a stateful frame accumulator. Chunk boundaries never matter:
// a partial trailing line is buffered until its newline arrives, so feeding
// a stream byte-by-byte emits the same events as feeding it whole. A
// trailing fragment left when the stream closes is simply discarded.
//
// Malformed frames (prefix present but the remainder is not valid JSON, or
// the tag is not part of the recognized set) are dropped with a logged
// diagnostic and counted; a single bad frame never kills a healthy stream.
//
// Not safe for concurrent use; one exchange owns one Decoder.
type Decoder struct {
	rem     []byte
	dropped int
}

// NewDecoder returns a Decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next chunk and returns every event completed by it, in
// stream order. The chunk may be retained only for the duration of the
// call; partial-line bytes are copied into the internal buffer.
func (d *Decoder) Feed(chunk []byte) []models.StreamEvent {
	data := chunk
	if len(d.rem) > 0 {
		data = append(d.rem, chunk...)
		d.rem = nil
	}

	var events []models.StreamEvent
	for {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			break
		}
		line := data[:nl]
		data = data[nl+1:]
		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}

	if len(data) > 0 {
		d.rem = append([]byte(nil), data...)
	}
	return events
}

// Dropped returns how many prefixed frames were discarded as malformed or
// unrecognized since the decoder was created.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) decodeLine(line []byte) (models.StreamEvent, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return models.StreamEvent{}, false
	}

	payload := line[len(prefix):]
	var ev models.StreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.dropped++
		log.Warn().Err(err).Int("bytes", len(payload)).Msg("Dropping malformed stream frame")
		return models.StreamEvent{}, false
	}
	if !ev.Type.Known() {
		d.dropped++
		log.Debug().Str("type", string(ev.Type)).Msg("Dropping unrecognized stream event")
		return models.StreamEvent{}, false
	}
	return ev, true
}
