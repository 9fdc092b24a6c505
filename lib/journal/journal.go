// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/provost-linux/provost/lib/binhash"
	"github.com/provost-linux/provost/lib/capset"
	"github.com/provost-linux/provost/lib/codec"
)

// Chunk file layout. Both kinds open with the same magic and format
// version; closed chunks carry an extended header describing how the
// payload was packed.
const (
	chunkMagic    = "provostj"
	formatVersion = 0x01

	kindActive byte = 0x00
	kindClosed byte = 0x01

	activeHeaderLen = len(chunkMagic) + 2
	closedHeaderLen = activeHeaderLen + 1 + 1 + 4

	activeName  = "journal.active"
	closedGlob  = "journal-*.pjc"
	closedWidth = 8

	// maxRecordSize bounds a single frame so a corrupt length prefix
	// cannot drive allocation.
	maxRecordSize = 1 << 20
)

// Outcome classifies how an elevation attempt ended.
type Outcome string

const (
	// OutcomeGranted records a successful decision; the transition
	// was handed the matched task.
	OutcomeGranted Outcome = "granted"

	// OutcomeDenied records a policy refusal: no role and task
	// matched the credential and command.
	OutcomeDenied Outcome = "denied"

	// OutcomeError records an abort before or during the
	// transition: authentication failure, unreadable policy, or a
	// failed syscall in the sequence.
	OutcomeError Outcome = "error"
)

// Record is one elevation attempt.
type Record struct {
	Time    time.Time `cbor:"time"`
	User    string    `cbor:"user"`
	UID     uint32    `cbor:"uid"`
	TTY     uint64    `cbor:"tty,omitempty"`
	PPID    int       `cbor:"ppid,omitempty"`
	Command string    `cbor:"command"`

	Outcome Outcome `cbor:"outcome"`
	// Detail carries the denial or error text for non-granted
	// outcomes.
	Detail string `cbor:"detail,omitempty"`

	Role      string     `cbor:"role,omitempty"`
	Task      string     `cbor:"task,omitempty"`
	Caps      capset.Set `cbor:"caps,omitempty"`
	SetUser   string     `cbor:"set_user,omitempty"`
	SetGroups []string   `cbor:"set_groups,omitempty"`

	// PolicyHash fingerprints the policy database the decision was
	// made against. BinaryHash fingerprints the executable that ran;
	// nil when the command never resolved to a file.
	PolicyHash binhash.Digest  `cbor:"policy_hash"`
	BinaryHash *binhash.Digest `cbor:"binary_hash,omitempty"`
}

// Config holds the writer parameters, normally taken from settings.
type Config struct {
	// Dir is the journal directory, created 0700 if absent.
	Dir string

	// RotateSize closes the active chunk once it reaches this many
	// bytes. Zero or negative selects 1 MiB.
	RotateSize int64

	// Compression packs closed chunks. CompressionNone stores them
	// raw.
	Compression CompressionTag

	// Sealer, when non-nil, seals closed chunks. The active chunk is
	// always plaintext; rotate early if that window matters.
	Sealer *Sealer

	// Logger receives rotation diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Writer appends records. Every Append opens, locks, writes, syncs,
// and closes the active chunk, so a Writer carries no open state and
// multiple processes can share one journal directory.
type Writer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWriter validates the configuration and ensures the journal
// directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("journal: Dir is required")
	}
	if cfg.RotateSize <= 0 {
		cfg.RotateSize = 1 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("journal: creating %s: %w", cfg.Dir, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{cfg: cfg, logger: logger}, nil
}

// Append encodes the record, appends it to the active chunk, and
// syncs. When the active chunk crosses the rotation threshold the
// append also rotates it.
func (w *Writer) Append(rec Record) error {
	encoded, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: encoding record: %w", err)
	}
	if len(encoded) > maxRecordSize {
		return fmt.Errorf("journal: record is %d bytes, limit is %d", len(encoded), maxRecordSize)
	}

	file, err := w.openActive()
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("journal: seeking active chunk: %w", err)
	}
	frame := make([]byte, 4+len(encoded))
	binary.BigEndian.PutUint32(frame, uint32(len(encoded)))
	copy(frame[4:], encoded)
	if _, err := file.Write(frame); err != nil {
		return fmt.Errorf("journal: appending record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("journal: syncing active chunk: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("journal: sizing active chunk: %w", err)
	}
	if info.Size() >= w.cfg.RotateSize {
		if err := w.rotate(file); err != nil {
			return fmt.Errorf("journal: rotating: %w", err)
		}
	}
	return nil
}

// openActive opens the active chunk under an exclusive flock,
// initializing the header on first use.
func (w *Writer) openActive() (*os.File, error) {
	path := filepath.Join(w.cfg.Dir, activeName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: opening active chunk: %w", err)
	}
	// The lock rides the descriptor and releases on close.
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: locking active chunk: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: inspecting active chunk: %w", err)
	}
	if info.Size() == 0 {
		header := make([]byte, 0, activeHeaderLen)
		header = append(header, chunkMagic...)
		header = append(header, formatVersion, kindActive)
		if _, err := file.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("journal: initializing active chunk: %w", err)
		}
		return file, nil
	}

	var header [len(chunkMagic) + 2]byte
	if _, err := file.ReadAt(header[:], 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: reading active chunk header: %w", err)
	}
	if string(header[:len(chunkMagic)]) != chunkMagic ||
		header[len(chunkMagic)] != formatVersion ||
		header[len(chunkMagic)+1] != kindActive {
		file.Close()
		return nil, fmt.Errorf("journal: %s is not an active journal chunk", path)
	}
	return file, nil
}

// rotate packs the active chunk's record stream into the next closed
// chunk and truncates the active chunk back to a bare header. The
// caller holds the flock.
func (w *Writer) rotate(active *os.File) error {
	info, err := active.Stat()
	if err != nil {
		return err
	}
	payload := make([]byte, info.Size()-int64(activeHeaderLen))
	if _, err := io.ReadFull(io.NewSectionReader(active, int64(activeHeaderLen), int64(len(payload))), payload); err != nil {
		return fmt.Errorf("reading record stream: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}

	seq, err := nextChunkSeq(w.cfg.Dir)
	if err != nil {
		return err
	}

	packed, tag, err := compressChunk(payload, w.cfg.Compression)
	if err != nil {
		return fmt.Errorf("compressing chunk %d: %w", seq, err)
	}
	sealed := byte(0)
	if w.cfg.Sealer != nil {
		packed, err = w.cfg.Sealer.Seal(packed, seq)
		if err != nil {
			// The active chunk stays in place; never fall back to a
			// plaintext closed chunk.
			return fmt.Errorf("sealing chunk %d: %w", seq, err)
		}
		sealed = 1
	}

	header := make([]byte, 0, closedHeaderLen)
	header = append(header, chunkMagic...)
	header = append(header, formatVersion, kindClosed, byte(tag), sealed)
	header = binary.BigEndian.AppendUint32(header, uint32(len(payload)))

	if err := writeChunkFile(w.cfg.Dir, chunkName(seq), header, packed); err != nil {
		return err
	}

	if err := active.Truncate(int64(activeHeaderLen)); err != nil {
		return fmt.Errorf("truncating active chunk: %w", err)
	}
	if err := active.Sync(); err != nil {
		return fmt.Errorf("syncing truncated active chunk: %w", err)
	}

	w.logger.Info("journal chunk rotated",
		"seq", seq,
		"records_bytes", len(payload),
		"stored_bytes", len(packed),
		"compression", tag.String(),
		"sealed", sealed == 1,
	)
	return nil
}

// writeChunkFile persists a closed chunk: temp file, sync, rename,
// directory sync. A crash leaves either the complete chunk or
// nothing.
func writeChunkFile(dir, name string, header, payload []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating chunk temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing chunk header: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("writing chunk payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing chunk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing chunk: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("publishing chunk: %w", err)
	}

	dirFile, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening journal directory for sync: %w", err)
	}
	defer dirFile.Close()
	if err := dirFile.Sync(); err != nil {
		return fmt.Errorf("syncing journal directory: %w", err)
	}
	return nil
}

func chunkName(seq uint64) string {
	return fmt.Sprintf("journal-%0*d.pjc", closedWidth, seq)
}

// chunkSeqFromName parses the sequence number out of a closed chunk
// file name.
func chunkSeqFromName(name string) (uint64, bool) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "journal-"), ".pjc")
	if trimmed == name || len(trimmed) < closedWidth {
		return 0, false
	}
	seq, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// closedChunks lists the closed chunk files in sequence order.
func closedChunks(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, closedGlob))
	if err != nil {
		return nil, fmt.Errorf("journal: listing chunks: %w", err)
	}
	var names []string
	for _, match := range matches {
		if _, ok := chunkSeqFromName(filepath.Base(match)); ok {
			names = append(names, match)
		}
	}
	sort.Strings(names)
	return names, nil
}

func nextChunkSeq(dir string) (uint64, error) {
	names, err := closedChunks(dir)
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, name := range names {
		if seq, ok := chunkSeqFromName(filepath.Base(name)); ok && seq > max {
			max = seq
		}
	}
	return max + 1, nil
}
