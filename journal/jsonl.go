package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// JSONL appends one JSON record per line. Each append writes the full
// line then syncs, so a crash leaves at most one torn trailing line,
// which readers discard; the last fully-written record wins.
type JSONL struct {
	trades    *os.File
	snapshots *os.File
}

func NewJSONL(tradesPath, snapshotsPath string) (*JSONL, error) {
	tf, err := os.OpenFile(tradesPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trades journal: %w", err)
	}
	sf, err := os.OpenFile(snapshotsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("open snapshots journal: %w", err)
	}
	return &JSONL{trades: tf, snapshots: sf}, nil
}

func (j *JSONL) RecordTrade(t TradeRecord) error {
	return appendLine(j.trades, t)
}

func (j *JSONL) RecordSnapshot(s Snapshot) error {
	return appendLine(j.snapshots, s)
}

// Snapshots reloads the snapshot stream from disk, skipping a torn
// trailing record.
func (j *JSONL) Snapshots() ([]Snapshot, error) {
	return LoadSnapshots(j.snapshots.Name())
}

func (j *JSONL) Close() error {
	if err := j.trades.Close(); err != nil {
		return err
	}
	return j.snapshots.Close()
}

func appendLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append journal record: %w", err)
	}
	return f.Sync()
}

// LoadSnapshots reads a snapshot JSONL file. A final line that does not
// parse is treated as a torn write and dropped; a malformed line in the
// middle of the file is a real error.
func LoadSnapshots(path string) ([]Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshots: %w", err)
	}
	defer f.Close()

	var (
		out     []Snapshot
		lineNum int
		bad     int // line number of first undecodable line, 1-based
	)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lineNum++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var s Snapshot
		if err := json.Unmarshal(line, &s); err != nil {
			if bad == 0 {
				bad = lineNum
			}
			continue
		}
		if bad != 0 {
			return nil, fmt.Errorf("snapshots: undecodable record at line %d followed by valid data", bad)
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return out, nil
}
