package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const followPoll = 250 * time.Millisecond

// Filter narrows daemon log lines to one batch, one thumbnail or a minimum
// level. Lines that are not JSON objects never match a non-empty filter.
type Filter struct {
	BatchID  string
	Identity string
	MinLevel string
}

// Empty reports whether the filter accepts every line.
func (f Filter) Empty() bool {
	return f.BatchID == "" && f.Identity == "" && f.MinLevel == ""
}

// Validate rejects level names slog does not know.
func (f Filter) Validate() error {
	if f.MinLevel == "" {
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(f.MinLevel)); err != nil {
		return fmt.Errorf("invalid level %q", f.MinLevel)
	}
	return nil
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	var fields struct {
		Level    string `json:"level"`
		BatchID  string `json:"batch_id"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return false
	}
	if f.BatchID != "" && fields.BatchID != f.BatchID {
		return false
	}
	if f.Identity != "" && fields.Identity != f.Identity {
		return false
	}
	if f.MinLevel != "" {
		var want, got slog.Level
		if want.UnmarshalText([]byte(f.MinLevel)) != nil || got.UnmarshalText([]byte(fields.Level)) != nil {
			return false
		}
		return got >= want
	}
	return true
}

// TailOptions selects where reading starts. A negative Offset returns the
// last Limit matching lines; otherwise reading resumes at Offset. Follow with
// a positive Wait blocks until a matching line arrives or Wait elapses.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult carries the matching lines and the offset to resume from. The
// offset only ever moves past complete lines.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the daemon log at path. A missing file yields no lines and a
// zero offset. An offset beyond the file size means the log was truncated or
// rotated, so reading restarts from the beginning.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if err := opts.Filter.Validate(); err != nil {
		return TailResult{Offset: opts.Offset}, err
	}
	size, err := fileSize(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}

	var res TailResult
	if opts.Offset < 0 {
		res, err = lastMatching(path, opts.Limit, opts.Filter)
	} else {
		start := opts.Offset
		if start > size {
			start = 0
		}
		res, err = scanFrom(path, start, opts.Filter)
	}
	if err != nil {
		return res, err
	}
	if opts.Follow && opts.Wait > 0 && len(res.Lines) == 0 {
		return follow(ctx, path, res.Offset, opts.Wait, opts.Filter)
	}
	return res, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		return 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("log path %q is a directory", path)
	}
	return info.Size(), nil
}

// eachLine calls fn for every newline-terminated line from start and returns
// the offset just past the last one. A trailing partial line is left for the
// next read.
func eachLine(path string, start int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return start, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return start, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	offset := start
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func scanFrom(path string, start int64, filter Filter) (TailResult, error) {
	var lines []string
	offset, err := eachLine(path, start, func(line string) {
		if filter.Match(line) {
			lines = append(lines, line)
		}
	})
	return TailResult{Lines: lines, Offset: offset}, err
}

// lastMatching keeps at most limit matching lines while scanning the whole
// file. A zero limit only positions the offset at the end.
func lastMatching(path string, limit int, filter Filter) (TailResult, error) {
	if limit <= 0 {
		offset, err := eachLine(path, 0, func(string) {})
		return TailResult{Offset: offset}, err
	}
	kept := make([]string, 0, limit)
	offset, err := eachLine(path, 0, func(line string) {
		if !filter.Match(line) {
			return
		}
		if len(kept) == 2*limit {
			kept = append(kept[:0], kept[limit:]...)
		}
		kept = append(kept, line)
	})
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return TailResult{Lines: kept, Offset: offset}, err
}

func follow(ctx context.Context, path string, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(followPoll)
	defer ticker.Stop()

	for {
		if size, err := fileSize(path); err == nil && offset > size {
			offset = 0
		}
		res, err := scanFrom(path, offset, filter)
		if err != nil || len(res.Lines) > 0 {
			return res, err
		}
		offset = res.Offset
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
	}
}

// LineFilter normalizes operator-supplied filter values.
func LineFilter(batchID, identity, minLevel string) Filter {
	return Filter{
		BatchID:  strings.TrimSpace(batchID),
		Identity: strings.TrimSpace(identity),
		MinLevel: strings.ToLower(strings.TrimSpace(minLevel)),
	}
}
