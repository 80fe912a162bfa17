package monitor

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/bassamsdata/fsmonitor/internal/logging"
)

const binaryProbeWindow = 8 * 1024 // 8 KiB, per spec §4.3

var readerLog = logging.ForComponent(logging.CompReader)

// ReadResult is the successful outcome of Reader.Read.
type ReadResult struct {
	Content []byte
	Device  uint64
	Inode   uint64
}

// Reader performs non-blocking (from the caller's perspective — see
// Monitor's worker pool) reads with a size ceiling and binary detection.
type Reader struct {
	maxFileSize int64
}

// NewReader builds a Reader that rejects files larger than maxFileSize.
func NewReader(maxFileSize int64) *Reader {
	return &Reader{maxFileSize: maxFileSize}
}

// Read opens, stats, reads, and closes absPath, returning its content and
// (device, inode) identity, or a classified ReadError.
func (r *Reader) Read(absPath string) (*ReadResult, error) {
	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newReadError(NotFound, absPath, err)
		}
		return nil, newReadError(IoError, absPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newReadError(NotFound, absPath, err)
		}
		return nil, newReadError(IoError, absPath, err)
	}
	if !info.Mode().IsRegular() {
		// Symlinks are followed transparently by os.Open; anything that
		// isn't a regular file at this point (fifo, socket, device) is
		// simply not tracked. Spec §1: only regular files are tracked.
		return nil, newReadError(IoError, absPath, os.ErrInvalid)
	}
	if info.Size() > r.maxFileSize {
		return nil, newReadError(TooLarge, absPath, nil)
	}

	dev, ino := statIdentity(f)

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, newReadError(IoError, absPath, err)
	}

	window := content
	if len(window) > binaryProbeWindow {
		window = window[:binaryProbeWindow]
	}
	if bytes.IndexByte(window, 0) >= 0 {
		readerLog.Debug("read_rejected_binary", slog.String("path", absPath))
		return nil, newReadError(Binary, absPath, nil)
	}

	return &ReadResult{Content: content, Device: dev, Inode: ino}, nil
}
