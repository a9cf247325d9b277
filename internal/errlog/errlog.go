// Package errlog provides a dedicated error-only file logger plus a
// log-once helper for missing-optional-capability warnings.
//
// Features:
//   - Only ERROR level messages are recorded in the file log
//   - Automatic log rotation when the file exceeds the rotation threshold
//   - Rotated logs are gzip-compressed to save disk space
//   - Retains up to maxBackups compressed archives
//   - WarnOnce suppresses repeated warnings for the same key (one log line
//     per process, not one per call)
//   - Thread-safe: all operations are protected by a mutex
package errlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	logFileName = "error.log"

	// maxFileSize is the threshold in bytes before rotation (10 MB).
	maxFileSize = 10 << 20
	// maxBackups is the number of compressed archives to keep.
	maxBackups = 5
	// writeBufSize is the size of the internal write buffer.
	writeBufSize = 4096
)

var (
	global *errorLogger
	mu     sync.Mutex // protects Init / Close and the global pointer

	onceMu   sync.Mutex
	onceSeen = make(map[string]bool)
)

// errorLogger holds the state for the rotating error log writer.
type errorLogger struct {
	mu   sync.Mutex
	file *os.File
	dir  string
	path string
	size int64
	buf  []byte // reusable format buffer to reduce allocations
}

// Init initializes the error logger writing under dir. It is safe to call
// multiple times; if the logger is already running the call is a no-op.
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil // already initialised
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create error log directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open error log file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat error log file: %w", err)
	}

	global = &errorLogger{
		file: f,
		dir:  dir,
		path: path,
		size: info.Size(),
		buf:  make([]byte, 0, writeBufSize),
	}
	return nil
}

// Logf writes a formatted error message to the error log file.
// If the logger is not initialized the call is silently ignored.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		return
	}
	l.logf(format, args...)
}

// WarnOnce logs a warning to the standard logger at most once per key for the
// process lifetime. Used for missing optional capabilities (a PDF library, an
// NLP resource) where a per-call warning would flood the logs during a build.
func WarnOnce(key, format string, args ...interface{}) {
	onceMu.Lock()
	seen := onceSeen[key]
	if !seen {
		onceSeen[key] = true
	}
	onceMu.Unlock()

	if seen {
		return
	}
	log.Printf("[WARN] "+format, args...)
}

// Close flushes and closes the error log file. Call on application shutdown.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		return
	}
	global.close()
	global = nil
}

// --- internal methods on errorLogger ---

// logf formats the message, writes it, and triggers rotation if needed.
func (l *errorLogger) logf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	// Format: "2006/01/02 15:04:05 [ERROR] <message>\n"
	now := time.Now()
	l.buf = l.buf[:0]
	l.buf = now.AppendFormat(l.buf, "2006/01/02 15:04:05")
	l.buf = append(l.buf, " [ERROR] "...)
	l.buf = fmt.Appendf(l.buf, format, args...)
	if len(l.buf) == 0 || l.buf[len(l.buf)-1] != '\n' {
		l.buf = append(l.buf, '\n')
	}

	n, err := l.file.Write(l.buf)
	if err != nil {
		// Write failed — not much we can do; avoid cascading errors.
		return
	}
	l.size += int64(n)

	if l.size >= maxFileSize {
		l.rotate()
	}
}

// rotate compresses the current log file and opens a fresh one.
// Caller must hold l.mu.
func (l *errorLogger) rotate() {
	l.file.Sync()
	l.file.Close()
	l.file = nil

	// Archive name: error-20260219-153045.log.gz
	ts := time.Now().Format("20060102-150405")
	archivePath := filepath.Join(l.dir, fmt.Sprintf("error-%s.log.gz", ts))

	// Truncate the original whether or not compression succeeded, to avoid
	// unbounded growth.
	compressFile(l.path, archivePath)
	os.Truncate(l.path, 0)

	l.pruneArchives()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Cannot reopen — logger is effectively dead until next Init.
		return
	}
	l.file = f
	l.size = 0
}

// pruneArchives removes the oldest compressed archives if there are more
// than maxBackups. Caller must hold l.mu.
func (l *errorLogger) pruneArchives() {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return
	}

	var archives []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "error-") && strings.HasSuffix(name, ".log.gz") {
			archives = append(archives, name)
		}
	}

	if len(archives) <= maxBackups {
		return
	}

	// Timestamp in the name makes lexical order chronological.
	sort.Strings(archives)
	for _, name := range archives[:len(archives)-maxBackups] {
		os.Remove(filepath.Join(l.dir, name))
	}
}

// close syncs and closes the underlying file. Caller must hold the package mu.
func (l *errorLogger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Sync()
		l.file.Close()
		l.file = nil
	}
}

// compressFile reads src and writes gzip-compressed data to dst.
// On failure the partial dst file is removed.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	gw, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}

	// Must close the gzip writer before the file to flush the footer.
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
