// Package ledger is the append-only, per-identity position log. Each identity
// owns one newline-delimited JSON file of PositionSnapshot records; every
// query is a linear scan of that file.
//
// The ledger does no file locking. Callers serialize writes per identity.
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"live-trader/internal/calendar"
	"live-trader/internal/logger"
	"live-trader/internal/types"
)

const (
	DefaultInitialCash  = 10000.0
	DefaultFallbackCash = 10000.0

	maxLineBytes = 1 << 20
)

// PathFunc maps a ledger root and identity to the ledger file.
type PathFunc func(root, identity string) string

// DefaultPath is <root>/<identity>/position/position.jsonl.
func DefaultPath(root, identity string) string {
	return filepath.Join(root, identity, "position", "position.jsonl")
}

// MalformedFunc is told about every skipped line.
type MalformedFunc func(identity, path string, line int, err error)

type Ledger struct {
	root         string
	path         PathFunc
	cadence      calendar.Cadence
	initialCash  float64
	fallbackCash float64
	onMalformed  MalformedFunc
}

type Option func(*Ledger)

func WithPathFunc(fn PathFunc) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.path = fn
		}
	}
}

// WithCadence sets how the label preceding a reference label is computed.
func WithCadence(c calendar.Cadence) Option {
	return func(l *Ledger) {
		if c != nil {
			l.cadence = c
		}
	}
}

// WithInitialCash sets the CASH seeded into the Init record of a new ledger.
func WithInitialCash(v float64) Option {
	return func(l *Ledger) { l.initialCash = v }
}

// WithFallbackCash sets the CASH used when pre-ledger holdings must be
// synthesized but the earliest record already holds assets.
func WithFallbackCash(v float64) Option {
	return func(l *Ledger) { l.fallbackCash = v }
}

func WithOnMalformed(fn MalformedFunc) Option {
	return func(l *Ledger) { l.onMalformed = fn }
}

// New returns a ledger rooted at root. The default cadence is daily.
func New(root string, opts ...Option) *Ledger {
	l := &Ledger{
		root:         root,
		path:         DefaultPath,
		cadence:      calendar.Daily(),
		initialCash:  DefaultInitialCash,
		fallbackCash: DefaultFallbackCash,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Root() string { return l.root }

func (l *Ledger) Cadence() calendar.Cadence { return l.cadence }

func (l *Ledger) InitialCash() float64 { return l.initialCash }

func (l *Ledger) Path(identity string) string { return l.path(l.root, identity) }

// Append writes one record and returns its id: one more than the highest id
// anywhere in the ledger. A ledger with no records gets an Init record (id 0)
// first unless action is itself the Init.
//
// An empty identity or date is a caller bug and is rejected before any I/O;
// those errors are not StorageErrors. Every other failure is a StorageError.
func (l *Ledger) Append(ctx context.Context, identity, date string, action types.Action, positions types.Positions) (int64, error) {
	if identity == "" {
		return -1, errors.New("ledger append: empty identity")
	}
	if date == "" {
		return -1, fmt.Errorf("ledger append: %w: empty date", ErrMalformedRecord)
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	records, err := l.read(ctx, identity)
	if err != nil {
		return -1, err
	}

	var pending []types.PositionSnapshot
	next := nextID(records)
	if len(records) == 0 && action.Kind != types.ActionInit {
		pending = append(pending, l.initRecord(date))
		next = 1
	}
	if positions == nil {
		positions = types.Positions{}
	}
	rec := types.PositionSnapshot{
		Date:      date,
		ID:        next,
		Action:    action,
		Positions: positions.Clone(),
	}
	pending = append(pending, rec)

	if err := l.write(l.Path(identity), pending); err != nil {
		return -1, err
	}
	return rec.ID, nil
}

// EnsureInitialized writes the Init record when the ledger is empty and
// reports whether it did.
func (l *Ledger) EnsureInitialized(ctx context.Context, identity, date string) (bool, error) {
	records, err := l.read(ctx, identity)
	if err != nil {
		return false, err
	}
	if len(records) > 0 {
		return false, nil
	}
	if _, err := l.Append(ctx, identity, date, types.InitAction(l.initialCash), types.Positions{types.CashKey: l.initialCash}); err != nil {
		return false, err
	}
	return true, nil
}

// Records returns every readable record in write order.
func (l *Ledger) Records(ctx context.Context, identity string) ([]types.PositionSnapshot, error) {
	return l.read(ctx, identity)
}

// MaxID is the highest id in the ledger, or -1 when it is empty.
func (l *Ledger) MaxID(ctx context.Context, identity string) (int64, error) {
	records, err := l.read(ctx, identity)
	if err != nil {
		return -1, err
	}
	return nextID(records) - 1, nil
}

// Identities lists the identities under root that have a ledger file.
func (l *Ledger) Identities() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("read", l.root, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(l.Path(e.Name())); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (l *Ledger) initRecord(date string) types.PositionSnapshot {
	return types.PositionSnapshot{
		Date:      date,
		ID:        0,
		Action:    types.InitAction(l.initialCash),
		Positions: types.Positions{types.CashKey: l.initialCash},
	}
}

func nextID(records []types.PositionSnapshot) int64 {
	next := int64(0)
	for _, r := range records {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	return next
}

// write appends recs in a single Write call. If the file does not end in a
// newline the previous write was torn; a newline is written first so that
// line stays on its own and is skipped on read.
func (l *Ledger) write(path string, recs []types.PositionSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return storageErr("mkdir", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return storageErr("open", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	torn, err := endsTorn(f)
	if err != nil {
		return storageErr("stat", path, err)
	}
	if torn {
		buf.WriteByte('\n')
	}
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("ledger encode record %d: %w", r.ID, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return storageErr("write", path, err)
	}
	return nil
}

func endsTorn(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}

// read returns the valid records of identity's ledger in file order. A missing
// file is an empty ledger.
func (l *Ledger) read(ctx context.Context, identity string) ([]types.PositionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.Path(identity)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("open", path, err)
	}
	defer f.Close()

	var out []types.PositionSnapshot
	r := bufio.NewReaderSize(f, 64*1024)
	for n := 1; ; n++ {
		line, tooLong, rerr := readLine(r, maxLineBytes)
		switch {
		case tooLong:
			l.malformed(ctx, identity, path, n, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedRecord, maxLineBytes))
		case len(bytes.TrimSpace(line)) > 0:
			rec, err := decodeRecord(bytes.TrimSpace(line))
			if err != nil {
				l.malformed(ctx, identity, path, n, err)
			} else {
				out = append(out, rec)
			}
		}
		if rerr == io.EOF {
			return out, nil
		}
		if rerr != nil {
			return nil, storageErr("read", path, rerr)
		}
	}
}

// readLine returns the next line without its size limit being a read error:
// a line longer than limit is consumed and reported as tooLong.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		var chunk []byte
		chunk, err = r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}

func decodeRecord(line []byte) (types.PositionSnapshot, error) {
	var rec types.PositionSnapshot
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.Date == "" {
		return rec, fmt.Errorf("%w: missing date", ErrMalformedRecord)
	}
	if rec.ID < 0 {
		return rec, fmt.Errorf("%w: negative id %d", ErrMalformedRecord, rec.ID)
	}
	if rec.Positions == nil {
		rec.Positions = types.Positions{}
	}
	return rec, nil
}

func (l *Ledger) malformed(ctx context.Context, identity, path string, line int, err error) {
	logger.Warn(ctx, "Skipping malformed ledger line",
		"identity", identity,
		"path", path,
		"line", line,
		"error", err,
	)
	if l.onMalformed != nil {
		l.onMalformed(identity, path, line, err)
	}
}
