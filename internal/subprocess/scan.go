package subprocess

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wagiedev/linebridge-go/internal/errors"
)

// initialScanBufferSize is the starting size of the stdout scan buffer. It
// grows up to the configured maximum line size.
const initialScanBufferSize = 64 * 1024

// splitLines is a bufio.SplitFunc for newline-terminated lines. Unlike
// bufio.ScanLines it keeps carriage returns and reports a trailing fragment
// without a newline as ErrUnterminatedLine instead of returning it as a line.
func splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF && len(data) > 0 {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes", errors.ErrUnterminatedLine, len(data))
	}

	return 0, nil, nil
}

// scanLines reads newline-terminated lines from r and passes each one to
// emit until r is exhausted or emit returns false. It returns nil on a clean
// end of output.
func scanLines(r io.Reader, maxLineBytes int, emit func(string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Split(splitLines)

	// The scanner's limit includes the newline.
	limit := maxLineBytes + 1
	scanner.Buffer(make([]byte, 0, min(initialScanBufferSize, limit)), limit)

	for scanner.Scan() {
		if !emit(scanner.Text()) {
			return nil
		}
	}

	err := scanner.Err()
	if stderrors.Is(err, bufio.ErrTooLong) {
		return fmt.Errorf("worker output line exceeds %d bytes: %w", maxLineBytes, err)
	}

	return err
}
