// Package stream decodes server-sent event responses from the generation
// backend into discrete frames. Chat and inline completion share this
// decoder; they differ only in the JSON schema carried by each frame.
package stream

import (
	"bytes"
	"encoding/json"
	"io"
)

// dataMarker prefixes every payload-bearing frame.
var dataMarker = []byte("data: ")

// frameDelim separates frames in the byte stream.
var frameDelim = []byte("\n\n")

// Decoder splits a chunked byte stream into frames. Chunk boundaries are
// arbitrary: a frame may arrive split across any number of reads, and the
// decoder yields the same sequence of payloads regardless of how the
// transport fragments it.
type Decoder struct {
	r   io.Reader
	buf []byte
	eof bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next returns the JSON payload of the next complete frame, or io.EOF once
// the transport is exhausted. Frames that are not marker-prefixed or whose
// payload is not valid JSON are dropped silently; one garbled frame must
// never abort an otherwise healthy stream. End-of-stream is a transport
// fact only: callers decide completeness by whether they saw an explicit
// terminal event before EOF.
func (d *Decoder) Next() (json.RawMessage, error) {
	for {
		if idx := bytes.Index(d.buf, frameDelim); idx >= 0 {
			frame := d.buf[:idx]
			d.buf = d.buf[idx+len(frameDelim):]
			if payload, ok := parseFrame(frame); ok {
				return payload, nil
			}
			continue
		}

		if d.eof {
			// A trailing fragment without its delimiter is incomplete
			// and dropped.
			return nil, io.EOF
		}

		chunk := make([]byte, 4096)
		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
		}
		if err == io.EOF {
			d.eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

func parseFrame(frame []byte) (json.RawMessage, bool) {
	frame = bytes.TrimLeft(frame, "\r\n")
	if !bytes.HasPrefix(frame, dataMarker) {
		return nil, false
	}
	payload := bytes.TrimPrefix(frame, dataMarker)
	if !json.Valid(payload) {
		return nil, false
	}
	out := make(json.RawMessage, len(payload))
	copy(out, payload)
	return out, true
}
