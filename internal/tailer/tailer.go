package tailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"badgewatch/internal/checkpoint"
	"badgewatch/internal/logging"
)

// ErrNotFound is returned when the watched file does not exist. The
// caller retries on the next poll tick; it is never fatal.
var ErrNotFound = errors.New("log file not found")

// Batch is the result of a single poll: the complete lines appended
// since the previous poll, plus what happened to the file in between.
type Batch struct {
	Lines     []string
	Rotated   bool
	Truncated bool
	Skipped   int // undecodable lines dropped
}

// Tailer incrementally reads newly appended lines from a single file,
// tracking a byte offset and the file identity so rotation and
// truncation reset the position instead of losing the tail.
//
// A trailing line without a terminator is not emitted; the offset stays
// at its start so the next poll rereads it once it is complete.
type Tailer struct {
	path   string
	replay bool
	logger *logging.Logger

	started bool
	offset  int64
	device  uint64
	inode   uint64
}

// New creates a tailer for the given path. When replay is set the first
// poll reads from the start of the file instead of seeking to the end.
func New(path string, replay bool, logger *logging.Logger) *Tailer {
	return &Tailer{
		path:   path,
		replay: replay,
		logger: logger.WithComponent("tailer"),
	}
}

// Resume primes the tailer with a persisted position. It must be called
// before the first poll; the position is ignored if the file identity
// no longer matches when that poll runs.
func (t *Tailer) Resume(pos *checkpoint.Position) {
	if pos == nil || t.started || pos.Path != t.path {
		return
	}
	t.started = true
	t.offset = pos.Offset
	t.device = pos.Device
	t.inode = pos.Inode
	t.logger.Info().Int64("offset", pos.Offset).Msg("Resuming from checkpoint")
}

// Position returns the current position for checkpointing
func (t *Tailer) Position() checkpoint.Position {
	return checkpoint.Position{
		Path:   t.path,
		Offset: t.offset,
		Device: t.device,
		Inode:  t.inode,
	}
}

// Poll reads all complete lines appended since the last successful
// poll. It is synchronous and restartable: call it again for the next
// batch. Absence of the file is reported as ErrNotFound.
func (t *Tailer) Poll(ctx context.Context) (Batch, error) {
	var batch Batch

	if err := ctx.Err(); err != nil {
		return batch, err
	}

	fi, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return batch, fmt.Errorf("%w: %s", ErrNotFound, t.path)
		}
		return batch, fmt.Errorf("failed to stat file: %w", err)
	}

	dev, ino := fileIdentity(fi)

	if !t.started {
		t.started = true
		t.device = dev
		t.inode = ino
		if t.replay {
			t.offset = 0
			t.logger.Info().Str("path", t.path).Msg("Replaying file from start")
		} else {
			t.offset = fi.Size()
			t.logger.Info().Str("path", t.path).Msg("Starting from end of file")
			return batch, nil
		}
	}

	if identityChanged(t.device, t.inode, dev, ino) {
		t.logger.Info().Str("path", t.path).Msg("File rotation detected")
		t.offset = 0
		t.device = dev
		t.inode = ino
		batch.Rotated = true
	}

	if fi.Size() < t.offset {
		t.logger.Info().
			Str("path", t.path).
			Int64("offset", t.offset).
			Int64("size", fi.Size()).
			Msg("File truncation detected")
		t.offset = 0
		batch.Truncated = true
	}

	if fi.Size() == t.offset {
		return batch, nil
	}

	data, err := t.readFrom(t.offset, fi.Size())
	if err != nil {
		return batch, err
	}

	// Only consume up to the last complete line; an unterminated tail
	// stays at the current offset and is reread next poll.
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return batch, nil
	}
	t.offset += int64(last + 1)

	for _, raw := range bytes.Split(data[:last], []byte{'\n'}) {
		line := strings.TrimSuffix(string(raw), "\r")
		if !utf8.ValidString(line) {
			t.logger.Warn().Str("path", t.path).Msg("Skipping undecodable line")
			batch.Skipped++
			continue
		}
		batch.Lines = append(batch.Lines, line)
	}

	return batch, nil
}

// readFrom reads the byte range [offset, end) of the file. The file is
// opened per poll so a held descriptor never pins a rotated-away file.
func (t *Tailer) readFrom(offset, end int64) ([]byte, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, t.path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to offset: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(f, end-offset))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// identityChanged reports whether the file behind the path was
// replaced. Identity is unknown (all zeros) on platforms without
// inodes; rotation is then only caught by the truncation check.
func identityChanged(oldDev, oldIno, newDev, newIno uint64) bool {
	if oldDev == 0 && oldIno == 0 {
		return false
	}
	if newDev == 0 && newIno == 0 {
		return false
	}
	return oldDev != newDev || oldIno != newIno
}
