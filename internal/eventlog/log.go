package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/tkt-dev/tkt/internal/tkterr"
)

// MaxLineBytes bounds a single log line. Longer lines are skipped during
// replay and rejected when appending.
const MaxLineBytes = 1 << 20

// Log is an append-only JSONL event log on disk.
//
// The log has no internal locking: cross-process serialization is delegated
// to the versioning substrate that commits the file.
type Log struct {
	path string
}

// New returns a Log at the given path. The file need not exist yet;
// a missing log reads as empty.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Exists reports whether the log file is present on disk.
func (l *Log) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// EncodeLine serializes a record to its single-line wire form.
// HTML escaping is disabled so free text round-trips byte-identically;
// map keys are emitted sorted by encoding/json, and struct fields in
// declaration order, so the encoding is deterministic.
func EncodeLine(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, tkterr.Wrap(tkterr.CodeInvalidArg, err, "encode record %s", rec.ID)
	}
	line := buf.Bytes() // Encode appends the trailing newline
	if len(line) > MaxLineBytes {
		return nil, tkterr.NewID(tkterr.CodeOverflow, rec.ID,
			"record exceeds max line size (%d > %d bytes)", len(line), MaxLineBytes)
	}
	return line, nil
}

// Append writes one or more records to the end of the log as a single
// write. The parent directory is created on first append.
func (l *Log) Append(recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, rec := range recs {
		line, err := EncodeLine(rec)
		if err != nil {
			return err
		}
		buf.Write(line)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "create log directory")
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "open log for append")
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "append to log")
	}
	if err := f.Sync(); err != nil {
		return tkterr.Wrap(tkterr.CodeStorage, err, "sync log")
	}
	return nil
}

// ScanWarning describes a malformed line skipped during a scan.
type ScanWarning struct {
	Line int    // 1-based line number
	Msg  string // what was wrong
}

func (w ScanWarning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Msg)
}

// Scan reads every record in order, invoking fn per record. Malformed
// individual lines are skipped and reported via warn, never fatal: replay
// must remain available over partially corrupt history. A missing log file
// yields zero records and no error.
func (l *Log) Scan(fn func(rec Record) error, warn func(ScanWarning)) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return tkterr.Wrap(tkterr.CodeStorage, err, "open log")
	}
	defer f.Close()

	return scanRecords(f, fn, warn)
}

func scanRecords(r io.Reader, fn func(rec Record) error, warn func(ScanWarning)) error {
	if warn == nil {
		warn = func(ScanWarning) {}
	}

	br := bufio.NewReaderSize(r, 64*1024)
	lineNo := 0
	for {
		line, tooLong, err := readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return tkterr.Wrap(tkterr.CodeStorage, err, "scan log")
		}
		atEOF := errors.Is(err, io.EOF)
		if atEOF && len(line) == 0 && !tooLong {
			return nil
		}
		lineNo++

		switch {
		case tooLong:
			warn(ScanWarning{Line: lineNo, Msg: "exceeds max line size, skipped"})
		default:
			if ferr := scanLine(bytes.TrimSpace(line), lineNo, fn, warn); ferr != nil {
				return ferr
			}
		}
		if atEOF {
			return nil
		}
	}
}

// scanLine validates and dispatches one log line. Malformed input warns
// and returns nil; only fn itself can fail the scan.
func scanLine(line []byte, lineNo int, fn func(rec Record) error, warn func(ScanWarning)) error {
	if len(line) == 0 {
		return nil
	}

	// Cheap discriminator peek before committing to a full unmarshal.
	if !gjson.ValidBytes(line) {
		warn(ScanWarning{Line: lineNo, Msg: "not valid JSON, skipped"})
		return nil
	}
	op := Op(gjson.GetBytes(line, "op").String())
	if !op.IsValid() {
		warn(ScanWarning{Line: lineNo, Msg: fmt.Sprintf("unknown op %q, skipped", op)})
		return nil
	}
	if gjson.GetBytes(line, "id").String() == "" {
		warn(ScanWarning{Line: lineNo, Msg: "missing id, skipped"})
		return nil
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		warn(ScanWarning{Line: lineNo, Msg: fmt.Sprintf("unmarshal failed: %v", err)})
		return nil
	}
	return fn(rec)
}

// readLine reads up to the next newline. A line longer than MaxLineBytes is
// consumed to its end and reported via tooLong, so the scan can continue on
// the following line instead of aborting.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > MaxLineBytes {
				tooLong = true
				buf = nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return buf, tooLong, err
		}
		return bytes.TrimSuffix(buf, []byte("\n")), tooLong, nil
	}
}

// ReadAll collects every well-formed record in order.
func (l *Log) ReadAll(warn func(ScanWarning)) ([]Record, error) {
	var recs []Record
	err := l.Scan(func(rec Record) error {
		recs = append(recs, rec)
		return nil
	}, warn)
	if err != nil {
		return nil, err
	}
	return recs, nil
}
