// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/provost-linux/provost/lib/codec"
)

// Reader iterates the journal oldest-first: closed chunks in
// sequence order, then the active chunk. Chunks load one at a time.
type Reader struct {
	dir    string
	sealer *Sealer

	chunks  []string
	loaded  bool
	pending [][]byte
}

// NewReader opens the journal directory for reading. The sealer is
// required only when sealed chunks are present; pass nil otherwise.
func NewReader(dir string, sealer *Sealer) *Reader {
	return &Reader{dir: dir, sealer: sealer}
}

// Next returns the next record, or io.EOF after the last one. Errors
// name the chunk file they came from.
func (r *Reader) Next() (Record, error) {
	frame, err := r.nextFrame()
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := codec.Unmarshal(frame, &rec); err != nil {
		return Record{}, fmt.Errorf("journal: decoding record: %w", err)
	}
	return rec, nil
}

// NextFrame returns the next record's undecoded CBOR bytes, or io.EOF
// after the last one. The admin front-end renders frames in diagnostic
// notation when the record layout itself is under suspicion.
func (r *Reader) NextFrame() ([]byte, error) {
	return r.nextFrame()
}

func (r *Reader) nextFrame() ([]byte, error) {
	for {
		if len(r.pending) > 0 {
			frame := r.pending[0]
			r.pending = r.pending[1:]
			return frame, nil
		}
		if !r.loaded {
			if err := r.listChunks(); err != nil {
				return nil, err
			}
			r.loaded = true
		}
		if len(r.chunks) == 0 {
			return nil, io.EOF
		}

		path := r.chunks[0]
		r.chunks = r.chunks[1:]
		frames, err := r.readChunk(path)
		if err != nil {
			return nil, err
		}
		r.pending = frames
	}
}

// All drains the reader into a slice.
func (r *Reader) All() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func (r *Reader) listChunks() error {
	chunks, err := closedChunks(r.dir)
	if err != nil {
		return err
	}
	active := filepath.Join(r.dir, activeName)
	if _, err := os.Stat(active); err == nil {
		chunks = append(chunks, active)
	}
	r.chunks = chunks
	return nil
}

// readChunk loads one chunk file and splits its record stream into
// frames.
func (r *Reader) readChunk(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("journal: reading %s: %w", path, err)
	}
	name := filepath.Base(path)

	if len(data) < activeHeaderLen || string(data[:len(chunkMagic)]) != chunkMagic {
		return nil, fmt.Errorf("journal: %s: not a journal chunk", name)
	}
	if data[len(chunkMagic)] != formatVersion {
		return nil, fmt.Errorf("journal: %s: format version %d is not supported", name, data[len(chunkMagic)])
	}

	switch kind := data[len(chunkMagic)+1]; kind {
	case kindActive:
		return parseFrames(data[activeHeaderLen:], name)

	case kindClosed:
		if len(data) < closedHeaderLen {
			return nil, fmt.Errorf("journal: %s: truncated chunk header", name)
		}
		tag := CompressionTag(data[activeHeaderLen])
		sealed := data[activeHeaderLen+1] == 1
		rawLen := int(binary.BigEndian.Uint32(data[activeHeaderLen+2 : closedHeaderLen]))
		payload := data[closedHeaderLen:]

		if sealed {
			if r.sealer == nil {
				return nil, fmt.Errorf("journal: %s: chunk is sealed and no journal key is configured", name)
			}
			seq, ok := chunkSeqFromName(name)
			if !ok {
				return nil, fmt.Errorf("journal: %s: sealed chunk has no sequence number", name)
			}
			payload, err = r.sealer.Open(payload, seq)
			if err != nil {
				return nil, fmt.Errorf("journal: %s: %w", name, err)
			}
		}

		payload, err = decompressChunk(payload, tag, rawLen)
		if err != nil {
			return nil, fmt.Errorf("journal: %s: %w", name, err)
		}
		return parseFrames(payload, name)

	default:
		return nil, fmt.Errorf("journal: %s: unknown chunk kind %d", name, kind)
	}
}

// parseFrames splits a length-prefixed record stream into frames.
func parseFrames(payload []byte, source string) ([][]byte, error) {
	var frames [][]byte
	offset := 0
	for offset < len(payload) {
		if len(payload)-offset < 4 {
			return frames, fmt.Errorf("journal: %s: truncated frame at offset %d", source, offset)
		}
		frameLen := int(binary.BigEndian.Uint32(payload[offset:]))
		if frameLen == 0 || frameLen > maxRecordSize {
			return frames, fmt.Errorf("journal: %s: implausible frame length %d at offset %d", source, frameLen, offset)
		}
		offset += 4
		if offset+frameLen > len(payload) {
			return frames, fmt.Errorf("journal: %s: frame at offset %d runs past end of chunk", source, offset-4)
		}
		frames = append(frames, payload[offset:offset+frameLen])
		offset += frameLen
	}
	return frames, nil
}
