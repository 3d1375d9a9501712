// Package prices serves decision prices from the merged price file: one JSON
// document per line, each holding a symbol's "Time Series (...)" bars keyed
// by period label.
package prices

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"live-trader/internal/logger"
)

// ErrNoDataForPeriod means the file has no usable bar for a label and symbol.
var ErrNoDataForPeriod = errors.New("no price data for period")

const (
	buyKey   = "1. buy price"
	openKey  = "1. open"
	sellKey  = "4. sell price"
	closeKey = "4. close"
)

type Bar struct {
	Buy  float64
	Sell float64 // 0 when the bar only carries a buy price
}

// File is a PriceSource backed by the merged price file. It is safe for
// concurrent use; Reload swaps the whole table. The ingester appends a bar
// every hour, so callers Refresh before reading a new label.
type File struct {
	path string

	loadMu sync.Mutex // serializes reloads

	mu      sync.RWMutex
	series  map[string]map[string]Bar // symbol -> label -> bar
	loaded  bool
	size    int64
	modTime time.Time
}

func NewFile(path string) *File {
	return &File{path: path, series: map[string]map[string]Bar{}}
}

// Open loads path once.
func Open(ctx context.Context, path string) (*File, error) {
	f := NewFile(path)
	if err := f.Reload(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Path() string { return f.path }

// Reload re-reads the file. Lines that cannot be parsed are skipped.
func (f *File) Reload(ctx context.Context) error {
	f.loadMu.Lock()
	defer f.loadMu.Unlock()
	return f.reload(ctx)
}

// Refresh reloads the file only when its size or modification time changed
// since the last load, and reports whether it did.
func (f *File) Refresh(ctx context.Context) (bool, error) {
	f.loadMu.Lock()
	defer f.loadMu.Unlock()

	fi, err := os.Stat(f.path)
	if err != nil {
		return false, fmt.Errorf("stat price file: %w", err)
	}
	f.mu.RLock()
	same := f.loaded && fi.Size() == f.size && fi.ModTime().Equal(f.modTime)
	f.mu.RUnlock()
	if same {
		return false, nil
	}
	if err := f.reload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) reload(ctx context.Context) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open price file: %w", err)
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil {
		return fmt.Errorf("stat price file: %w", err)
	}

	series := map[string]map[string]Bar{}
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 256*1024), 64<<20)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		symbol, bars, err := parseDocument(line)
		if err != nil {
			logger.Warn(ctx, "Skipping unreadable price line", "path", f.path, "line", n, "error", err)
			continue
		}
		dst := series[symbol]
		if dst == nil {
			dst = map[string]Bar{}
			series[symbol] = dst
		}
		for label, bar := range bars {
			dst[label] = bar
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read price file: %w", err)
	}

	f.mu.Lock()
	f.series = series
	f.loaded = true
	f.size, f.modTime = fi.Size(), fi.ModTime()
	f.mu.Unlock()
	logger.Debug(ctx, "Price file loaded", "path", f.path, "symbols", len(series))
	return nil
}

func parseDocument(line []byte) (string, map[string]Bar, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return "", nil, err
	}
	var meta map[string]any
	if m, ok := raw["Meta Data"]; ok {
		if err := json.Unmarshal(m, &meta); err != nil {
			return "", nil, fmt.Errorf("meta data: %w", err)
		}
	}
	symbol, _ := meta["2. Symbol"].(string)
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", nil, errors.New("missing symbol")
	}

	bars := map[string]Bar{}
	for key, val := range raw {
		if !strings.HasPrefix(key, "Time Series") {
			continue
		}
		var ts map[string]map[string]json.RawMessage
		if err := json.Unmarshal(val, &ts); err != nil {
			return "", nil, fmt.Errorf("%s: %w", key, err)
		}
		for label, fields := range ts {
			buy, ok := number(fields[buyKey])
			if !ok {
				buy, ok = number(fields[openKey])
			}
			if !ok {
				continue
			}
			sell, ok := number(fields[sellKey])
			if !ok {
				sell, _ = number(fields[closeKey])
			}
			bars[label] = Bar{Buy: buy, Sell: sell}
		}
	}
	return symbol, bars, nil
}

// number accepts "123.45" or 123.45.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return v, err == nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// Price returns the buy price of symbol at label.
func (f *File) Price(label, symbol string) (float64, bool) {
	bar, err := f.Bar(label, symbol)
	if err != nil || bar.Buy <= 0 {
		return 0, false
	}
	return bar.Buy, true
}

func (f *File) Bar(label, symbol string) (Bar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	bar, ok := f.series[symbol][label]
	if !ok {
		return Bar{}, fmt.Errorf("%w: %s at %s", ErrNoDataForPeriod, symbol, label)
	}
	return bar, nil
}

// Symbols lists the loaded symbols in order.
func (f *File) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.series))
	for s := range f.series {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Static is an in-memory PriceSource keyed by label then symbol.
type Static map[string]map[string]float64

func (s Static) Price(label, symbol string) (float64, bool) {
	v, ok := s[label][symbol]
	return v, ok && v > 0
}

func (s Static) Set(label, symbol string, price float64) {
	if s[label] == nil {
		s[label] = map[string]float64{}
	}
	s[label][symbol] = price
}
