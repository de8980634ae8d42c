// Package history records timeline updates to compressed archive files and
// plays them back through a timeline.Store.
//
// An archive is a short magic header followed by a zstd stream of
// msgpack-encoded timeline.Update values.
package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unklstewy/skytrail/pkg/timeline"
)

var magic = []byte("SKYTRL01")

// ErrBadMagic is returned when a file is not a history archive.
var ErrBadMagic = errors.New("history: not an archive file")

// Writer appends updates to an archive. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	zw     *zstd.Encoder
	enc    *msgpack.Encoder
	closer io.Closer
	count  int
}

// NewWriter writes the archive header to w and returns a Writer for it.
// Closing the Writer does not close w.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(magic); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &Writer{zw: zw, enc: msgpack.NewEncoder(zw)}, nil
}

// Create creates an archive file, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Write appends updates to the archive.
func (w *Writer) Write(updates ...timeline.Update) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, u := range updates {
		if err := w.enc.Encode(&u); err != nil {
			return fmt.Errorf("failed to encode update for %s: %w", u.ID, err)
		}
		w.count++
	}
	return nil
}

// Count returns the number of updates written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush pushes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zw.Flush()
}

// Close finishes the zstd stream and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader reads updates back from an archive.
type Reader struct {
	zr     *zstd.Decoder
	dec    *msgpack.Decoder
	closer io.Closer
}

// NewReader checks the archive header on r and returns a Reader for it.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(br, hdr); err != nil || !bytes.Equal(hdr, magic) {
		return nil, ErrBadMagic
	}
	zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &Reader{zr: zr, dec: msgpack.NewDecoder(zr)}, nil
}

// Open opens an archive file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Next returns the next update, or io.EOF at the end of the archive.
func (r *Reader) Next() (timeline.Update, error) {
	var u timeline.Update
	if err := r.dec.Decode(&u); err != nil {
		if errors.Is(err, io.EOF) {
			return u, io.EOF
		}
		return u, fmt.Errorf("failed to decode update: %w", err)
	}
	return u, nil
}

// Close releases the decoder and closes the file opened by Open.
func (r *Reader) Close() error {
	r.zr.Close()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// ReadAll reads every update from r, sorted by observation time.
func ReadAll(r *Reader) ([]timeline.Update, error) {
	var out []timeline.Update
	for {
		u, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, u)
	}
	SortUpdates(out)
	return out, nil
}

// ReadFile opens, reads and closes an archive file.
func ReadFile(path string) ([]timeline.Update, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadAll(r)
}

// SortUpdates orders updates by observation time, keeping the original order
// for equal times.
func SortUpdates(updates []timeline.Update) {
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].Observation.ObservedAt.Before(updates[j].Observation.ObservedAt)
	})
}
