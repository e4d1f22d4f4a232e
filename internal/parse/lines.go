package parse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

var errLineTooLong = errors.New("line exceeds 10MB, skipped")

type line struct {
	Num  int
	Data []byte
	// Complete is false for a trailing line with no newline: the producer is
	// still appending it.
	Complete bool
	TooLong  bool
}

// eachLine streams r one line at a time without holding more than one line
// in memory. Blank lines are counted but not passed to fn. Data is only
// valid for the duration of the call. Iteration stops when fn returns false.
func eachLine(r io.Reader, fn func(line) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var (
		buf     []byte
		num     int
		tooLong bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			return err
		}
		if err == io.EOF && len(buf) == 0 && !tooLong {
			return nil
		}

		num++
		l := line{
			Num:      num,
			Data:     bytes.TrimSpace(buf),
			Complete: err == nil,
			TooLong:  tooLong,
		}
		if l.TooLong || len(l.Data) > 0 {
			if !fn(l) {
				return nil
			}
		}
		buf = buf[:0]
		tooLong = false
		if err == io.EOF {
			return nil
		}
	}
}
