package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	segjson "github.com/segmentio/encoding/json"

	"github.com/0xtitan6/backtest-v2/internal/clock"
)

// metaFileName and recordsFileName are the two files a bundle directory
// contains: a plain-JSON metadata file (read without decompression, so a
// caller can inspect readiness without paying for a full bundle read) and a
// zstd-compressed newline-delimited-JSON records file.
const (
	metaFileName    = "metadata.json"
	recordsFileName = "records.ndjson.zst"
)

// Writer appends records to a bundle directory and finalizes it with a
// Metadata file on Close. It mirrors the teacher's internal/store.Store
// crash-safety discipline: records stream straight to the zstd writer as
// they arrive, and Metadata is only written once, atomically, at Close —
// a bundle directory missing metadata.json was never finished.
type Writer struct {
	dir     string
	file    *os.File
	zw      *zstd.Encoder
	bw      *bufio.Writer
	count   int
	startTS int64
	endTS   int64
	haveAny bool
}

// Create makes a new bundle directory and opens it for writing.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create bundle dir: %w", err)
	}
	f, err := os.Create(dir + string(os.PathSeparator) + recordsFileName)
	if err != nil {
		return nil, fmt.Errorf("dataset: create records file: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dataset: create zstd writer: %w", err)
	}
	return &Writer{dir: dir, file: f, zw: zw, bw: bufio.NewWriter(zw)}, nil
}

// Append writes one record. Records must be appended in ascending IngestTS
// order — the writer does not sort or validate ordering itself, since a
// dataset is meant to be a faithful recording of arrival order, not a
// resorted one.
func (w *Writer) Append(r Record) error {
	data, err := segjson.Marshal(r)
	if err != nil {
		return fmt.Errorf("dataset: marshal record: %w", err)
	}
	if _, err := w.bw.Write(data); err != nil {
		return fmt.Errorf("dataset: write record: %w", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("dataset: write record separator: %w", err)
	}
	if !w.haveAny {
		w.startTS = int64(r.IngestTS)
		w.haveAny = true
	}
	w.endTS = int64(r.IngestTS)
	w.count++
	return nil
}

// Close flushes all buffered records and writes the finalized metadata
// file. meta's FormatVersion, RecordCount, StartTS, and EndTS are
// overwritten with what was actually observed, so a caller cannot
// accidentally publish a metadata file that disagrees with its own records.
func (w *Writer) Close(meta Metadata) error {
	if err := w.bw.Flush(); err != nil {
		w.zw.Close()
		w.file.Close()
		return fmt.Errorf("dataset: flush records: %w", err)
	}
	if err := w.zw.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("dataset: close zstd writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("dataset: close records file: %w", err)
	}

	meta.FormatVersion = FormatVersion
	meta.RecordCount = w.count
	meta.StartTS = clock.Nanos(w.startTS)
	meta.EndTS = clock.Nanos(w.endTS)

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("dataset: marshal metadata: %w", err)
	}
	path := w.dir + string(os.PathSeparator) + metaFileName
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dataset: write metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

// Reader reads a bundle's records back in the order they were appended.
type Reader struct {
	file *os.File
	zr   *zstd.Decoder
	sc   *bufio.Scanner
	meta Metadata
}

// Open opens an existing bundle directory, reading its metadata eagerly and
// its records lazily via Next.
func Open(dir string) (*Reader, error) {
	metaBytes, err := os.ReadFile(dir + string(os.PathSeparator) + metaFileName)
	if err != nil {
		return nil, fmt.Errorf("dataset: read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("dataset: unmarshal metadata: %w", err)
	}
	if meta.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("dataset: unsupported format version %q (want %q)", meta.FormatVersion, FormatVersion)
	}

	f, err := os.Open(dir + string(os.PathSeparator) + recordsFileName)
	if err != nil {
		return nil, fmt.Errorf("dataset: open records file: %w", err)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dataset: create zstd reader: %w", err)
	}
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{file: f, zr: zr, sc: sc, meta: meta}, nil
}

// Metadata returns the bundle's metadata.
func (r *Reader) Metadata() Metadata { return r.meta }

// Next reads the next record. It returns io.EOF once every record has been
// consumed.
func (r *Reader) Next() (Record, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return Record{}, fmt.Errorf("dataset: scan record: %w", err)
		}
		return Record{}, io.EOF
	}
	var rec Record
	if err := segjson.Unmarshal(r.sc.Bytes(), &rec); err != nil {
		return Record{}, fmt.Errorf("dataset: unmarshal record: %w", err)
	}
	return rec, nil
}

// Close releases the reader's underlying file handles.
func (r *Reader) Close() error {
	r.zr.Close()
	return r.file.Close()
}
