package interp

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/rs/xid"
)

// stdio is the pipe behind the interpreter's os.Stdout and os.Stderr.
//
// WHY A PIPE?
// yaegi only rebinds os.Stdout and os.Stderr inside executed code when its
// streams are *os.File values. Any other writer reaches fmt.Print* but not
// code that writes to os.Stdout directly. So the interpreter gets the write
// end of a pipe, and one goroutine copies the read end into the sink.
//
// flush writes a marker through the pipe and waits for the copier to see it,
// so everything written before the call has reached the sink.
type stdio struct {
	r, w *os.File
	sink io.Writer

	marker  []byte
	flushed chan struct{}
	done    chan struct{}
}

func newStdio(sink io.Writer) (*stdio, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("interp: creating output pipe: %w", err)
	}
	p := &stdio{
		r:       r,
		w:       w,
		sink:    sink,
		marker:  []byte("\x00flush-" + xid.New().String() + "\x00"),
		flushed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.copy()
	return p, nil
}

func (p *stdio) copy() {
	defer close(p.done)

	buf := make([]byte, 32*1024)
	var pending []byte
	for {
		n, err := p.r.Read(buf)
		pending = append(pending, buf[:n]...)

		for {
			i := bytes.Index(pending, p.marker)
			if i < 0 {
				break
			}
			p.sink.Write(pending[:i])
			pending = pending[i+len(p.marker):]
			p.flushed <- struct{}{}
		}

		// Hold back a tail that may be the start of a marker.
		keep := markerPrefixLen(pending, p.marker)
		p.sink.Write(pending[:len(pending)-keep])
		pending = append([]byte(nil), pending[len(pending)-keep:]...)

		if err != nil {
			p.sink.Write(pending)
			return
		}
	}
}

// markerPrefixLen returns the length of the longest suffix of b that is a
// proper prefix of marker.
func markerPrefixLen(b, marker []byte) int {
	for k := min(len(b), len(marker)-1); k > 0; k-- {
		if bytes.HasPrefix(marker, b[len(b)-k:]) {
			return k
		}
	}
	return 0
}

func (p *stdio) flush() error {
	if _, err := p.w.Write(p.marker); err != nil {
		return fmt.Errorf("interp: flushing output: %w", err)
	}
	select {
	case <-p.flushed:
	case <-p.done:
	}
	return nil
}

// close stops the copier after it has drained the pipe.
func (p *stdio) close() error {
	err := p.w.Close()
	<-p.done
	if rerr := p.r.Close(); err == nil {
		err = rerr
	}
	return err
}
