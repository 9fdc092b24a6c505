// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration shared by everything that
// writes or reads journal bytes.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer widths, no indefinite-length items. The
// same record always produces identical bytes, which keeps journal
// verification byte-stable. Decoding accepts standard CBOR and
// ignores unknown fields, so old binaries can read journals written
// by newer ones.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Capability sets and task identifiers marshal through
	// encoding.TextMarshaler; encode them as CBOR text strings so
	// their canonical spellings appear in the journal instead of
	// empty maps.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	// Second-granularity timestamps are too coarse for an audit
	// trail; microseconds still encode deterministically.
	encOptions.Time = cbor.TimeUnixMicro
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Journal inspection decodes records into any-typed values;
		// map[string]any beats the CBOR default of
		// map[interface{}]interface{}, which nothing downstream can
		// consume. Struct decoding is unaffected.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder and Decoder are stream codecs; the aliases keep callers off
// a direct fxamacker/cbor import.
type Encoder = cbor.Encoder

type Decoder = cbor.Decoder

// NewEncoder returns a deterministic CBOR encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8),
// used by journal inspection for raw record dumps.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
