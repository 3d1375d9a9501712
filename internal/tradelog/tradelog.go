package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is the outcome of one decision cycle.
type Entry struct {
	Time        string         `json:"time"`
	CycleID     string         `json:"cycle_id"`
	Identity    string         `json:"identity"`
	Label       string         `json:"label,omitempty"`
	Outcome     string         `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	Symbol      string         `json:"symbol,omitempty"`
	Side        string         `json:"side,omitempty"`
	Qty         float64        `json:"qty,omitempty"`
	Price       float64        `json:"price,omitempty"`
	OrderID     string         `json:"order_id,omitempty"`
	OrderStatus string         `json:"order_status,omitempty"`
	RecordID    int64          `json:"record_id"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// DecisionEntry is what the decider was shown and what it answered.
type DecisionEntry struct {
	Time       string             `json:"time"`
	CycleID    string             `json:"cycle_id"`
	Identity   string             `json:"identity"`
	Label      string             `json:"label"`
	Action     string             `json:"action"`
	Symbol     string             `json:"symbol,omitempty"`
	Qty        float64            `json:"qty,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Confidence float64            `json:"confidence"`
	Holdings   map[string]float64 `json:"holdings,omitempty"`
	Prices     map[string]float64 `json:"prices,omitempty"`
}

// Log writes one JSONL file per day under dir, plus decisions/ for the
// decider exchanges. Days are cut in loc.
type Log struct {
	dir string
	loc *time.Location
	now func() time.Time

	mu sync.Mutex
}

func New(dir string, loc *time.Location) *Log {
	if dir == "" {
		dir = "logs"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Log{dir: dir, loc: loc, now: time.Now}
}

// WithClock replaces the time source.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.In(l.loc).Format("2006-01-02")+".txt")
}

func (l *Log) decisionsFilepath(t time.Time) string {
	return filepath.Join(l.dir, "decisions", t.In(l.loc).Format("2006-01-02")+".txt")
}

func (l *Log) Append(e Entry) error {
	now := l.now().In(l.loc)
	e.Time = now.Format("2006-01-02 15:04:05")
	return l.appendJSON(l.dailyFilepath(now), e)
}

func (l *Log) AppendDecision(e DecisionEntry) error {
	now := l.now().In(l.loc)
	e.Time = now.Format("2006-01-02 15:04:05")
	return l.appendJSON(l.decisionsFilepath(now), e)
}

func (l *Log) appendJSON(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// Read returns the cycle entries logged on day. A missing file is empty.
func (l *Log) Read(day time.Time) ([]Entry, error) {
	f, err := os.Open(l.dailyFilepath(day))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if json.Unmarshal(sc.Bytes(), &e) == nil {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}

// CompressOlder gzips .txt logs last modified more than retentionDays ago.
func (l *Log) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := d.Info()
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an earlier run
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := compressFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := gw.Close()
	fileErr := out.Close()
	if err := errors.Join(copyErr, closeErr, fileErr); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
