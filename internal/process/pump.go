package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the size of a single read from an output channel.
const DefaultChunkSize = 4096

// Mirror receives every chunk of engine output as soon as it is read. A nil
// writer disables mirroring of that channel.
type Mirror struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Pump drains the primary and diagnostic channels of a child concurrently.
// Primary output is accumulated for the result, diagnostic output is kept
// for error reporting. Neither channel can block the other.
type Pump struct {
	mirror Mirror
	chunk  int

	mx         sync.Mutex
	primary    bytes.Buffer
	diagnostic bytes.Buffer
	mirrored   bool
	errs       []error

	started sync.Once
	g       errgroup.Group
	done    chan struct{}
}

func NewPump(mirror Mirror, chunk int) *Pump {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &Pump{
		mirror:   mirror,
		chunk:    chunk,
		mirrored: mirror.Stdout != nil,
		done:     make(chan struct{}),
	}
}

// Start spawns one reader per channel. Only the first call has an effect.
func (p *Pump) Start(stdout, stderr io.Reader) {
	p.started.Do(func() {
		p.g.Go(func() error {
			return p.drain("stdout", stdout, &p.primary, p.mirror.Stdout)
		})
		p.g.Go(func() error {
			return p.drain("stderr", stderr, &p.diagnostic, p.mirror.Stderr)
		})
		go func() {
			_ = p.g.Wait()
			close(p.done)
		}()
	})
}

// drain reads r until end of stream. Read errors are recorded and end the
// channel, they never stop the other one.
func (p *Pump) drain(name string, r io.Reader, acc *bytes.Buffer, mirror io.Writer) error {
	buf := make([]byte, p.chunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.mx.Lock()
			acc.Write(buf[:n])
			p.mx.Unlock()
			if mirror != nil {
				if _, werr := mirror.Write(buf[:n]); werr != nil {
					slog.Warn("mirroring disabled", "channel", name, "error", werr)
					mirror = nil
					if name == "stdout" {
						p.mx.Lock()
						p.mirrored = false
						p.mx.Unlock()
					}
				}
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return nil
		default:
			p.mx.Lock()
			p.errs = append(p.errs, fmt.Errorf("reading %s: %w", name, err))
			p.mx.Unlock()
			return nil
		}
	}
}

// Done is closed when both channels reached end of stream.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until both channels are drained and returns the read errors.
func (p *Pump) Wait() error {
	<-p.done
	return p.Errs()
}

// Primary returns the primary output accumulated so far.
func (p *Pump) Primary() string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.primary.String()
}

// Diagnostic returns the diagnostic output accumulated so far.
func (p *Pump) Diagnostic() string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.diagnostic.String()
}

func (p *Pump) Errs() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	return errors.Join(p.errs...)
}

// Mirrored reports whether all primary output reached the console.
func (p *Pump) Mirrored() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.mirrored
}
