package process

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"weak"
)

var ErrAlreadyRegistered = errors.New("interrupt handler already registered")

// Registry turns process signals into interrupts of the running executions.
// There is one per process, see DefaultRegistry. A signal targets every
// execution, not only the most recent one: each live controller is
// interrupted and awaited, the partial primary output that was
// not mirrored is written to Partial, and Exit is called with 128+signal.
type Registry struct {
	// Exit defaults to os.Exit.
	Exit func(code int)
	// Partial defaults to os.Stdout.
	Partial io.Writer

	mx     sync.Mutex
	sigs   chan os.Signal
	stop   chan struct{}
	loop   sync.WaitGroup
	active []weak.Pointer[Controller]
}

// DefaultRegistry is the process wide registry.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	return &Registry{}
})

// Register starts delivering signals (SIGINT and SIGTERM by default). It can
// be called once until Unregister.
func (r *Registry) Register(signals ...os.Signal) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.sigs != nil {
		return ErrAlreadyRegistered
	}
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	r.sigs = make(chan os.Signal, 1)
	r.stop = make(chan struct{})
	signal.Notify(r.sigs, signals...)

	sigs, stop := r.sigs, r.stop
	r.loop.Go(func() {
		for {
			select {
			case <-stop:
				return
			case sig := <-sigs:
				r.HandleSignal(sig)
			}
		}
	})
	return nil
}

// Unregister stops signal delivery. It is a no-op when not registered.
func (r *Registry) Unregister() {
	r.mx.Lock()
	if r.sigs == nil {
		r.mx.Unlock()
		return
	}
	signal.Stop(r.sigs)
	close(r.stop)
	r.sigs, r.stop = nil, nil
	r.mx.Unlock()
	r.loop.Wait()
}

// Activate makes c a target of interrupts until release is called.
func (r *Registry) Activate(c *Controller) (release func()) {
	wp := weak.Make(c)
	r.mx.Lock()
	r.active = append(r.active, wp)
	r.mx.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mx.Lock()
			defer r.mx.Unlock()
			r.active = slices.DeleteFunc(r.active, func(p weak.Pointer[Controller]) bool {
				return p == wp || p.Value() == nil
			})
		})
	}
}

// live returns the registered controllers that are still reachable, most
// recent first.
func (r *Registry) live() []*Controller {
	r.mx.Lock()
	defer r.mx.Unlock()
	ret := make([]*Controller, 0, len(r.active))
	for _, wp := range slices.Backward(r.active) {
		if c := wp.Value(); c != nil {
			ret = append(ret, c)
		}
	}
	return ret
}

// HandleSignal interrupts every live execution, waits for them to finish and
// exits the process.
func (r *Registry) HandleSignal(sig os.Signal) {
	slog.Warn("interrupted, stopping engine", "signal", sig.String())
	ctrls := r.live()
	for _, c := range ctrls {
		c.interruptWith(sig)
	}
	for _, c := range ctrls {
		<-c.Finished()
		if c.pump.Mirrored() {
			continue
		}
		if partial := c.pump.Primary(); partial != "" {
			if _, err := io.WriteString(r.partial(), partial); err != nil {
				slog.Error("writing partial output", "error", err)
			}
		}
	}
	r.exit(ExitCode(sig))
}

func (r *Registry) partial() io.Writer {
	if r.Partial == nil {
		return os.Stdout
	}
	return r.Partial
}

func (r *Registry) exit(code int) {
	if r.Exit == nil {
		os.Exit(code)
	}
	r.Exit(code)
}

// ExitCode is the conventional shell exit status for a process stopped by
// sig: 130 for SIGINT, 143 for SIGTERM.
func ExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
