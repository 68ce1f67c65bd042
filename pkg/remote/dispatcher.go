package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/parallel"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"github.com/google/uuid"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one request/reply exchange with a worker.
const DefaultTimeout = 2 * time.Minute

// Launcher starts remote dispatchers against a fixed list of workers.
type Launcher struct {
	Addrs   []string
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Workers implements parallel.Launcher.
func (l *Launcher) Workers() int { return len(l.Addrs) }

// Mode implements parallel.Launcher.
func (l *Launcher) Mode() parallel.Mode { return parallel.Remote }

// Launch implements parallel.Launcher.
func (l *Launcher) Launch(ctx context.Context, table *walk.Table, seeds []uint64) (parallel.Dispatcher, error) {
	d, err := Dial(ctx, l.Addrs, table, seeds, l.Timeout, l.Logger)
	if err != nil {
		return nil, err
	}
	l.Metrics.SetRemoteWorkers(len(l.Addrs))
	d.metrics = l.Metrics
	return d, nil
}

// Dispatcher sends chunk i of every batch to worker i.
type Dispatcher struct {
	session string
	socks   []mangos.Socket
	addrs   []string
	// pending[i] is set while socket i waits for a reply nobody collects.
	pending []atomic.Bool
	logger  logging.Logger
	metrics *metrics.Registry
}

// Dial connects to every worker and hands each the table and its seed.
func Dial(ctx context.Context, addrs []string, table *walk.Table, seeds []uint64, timeout time.Duration, logger logging.Logger) (*Dispatcher, error) {
	if len(addrs) == 0 {
		return nil, errors.New("no remote workers configured")
	}
	if len(seeds) != len(addrs) {
		return nil, fmt.Errorf("need %d worker seeds, got %d", len(addrs), len(seeds))
	}
	if table == nil {
		return nil, errors.New("nil transition table")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	d := &Dispatcher{
		session: uuid.NewString(),
		socks:   make([]mangos.Socket, len(addrs)),
		addrs:   addrs,
		pending: make([]atomic.Bool, len(addrs)),
	}
	d.logger = logger.With(logging.Component("remote_dispatch"), logging.String("session", d.session))

	for i, addr := range addrs {
		sock, err := req.NewSocket()
		if err != nil {
			d.closeSockets()
			return nil, fmt.Errorf("failed to create REQ socket: %w", err)
		}
		d.socks[i] = sock
		for _, opt := range []string{mangos.OptionRecvDeadline, mangos.OptionSendDeadline} {
			if err := sock.SetOption(opt, timeout); err != nil {
				d.closeSockets()
				return nil, fmt.Errorf("failed to set %s: %w", opt, err)
			}
		}
		if err := sock.Dial(addr); err != nil {
			d.closeSockets()
			return nil, fmt.Errorf("failed to connect to worker %s: %w", addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range d.socks {
		g.Go(func() error {
			initMsg, err := NewMessage(MsgInit, d.session, InitRequest{
				Neighbors: table.Neighbors,
				CumProbs:  table.CumProbs,
				Seed:      seeds[i],
			})
			if err != nil {
				return err
			}
			reply, err := d.call(gctx, i, initMsg)
			if err != nil {
				return err
			}
			if reply.Type != MsgReady {
				return fmt.Errorf("%w: worker %s answered init with %s", ErrProtocol, addrs[i], reply.Type)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.closeSockets()
		return nil, err
	}

	d.logger.Info("remote workers ready", logging.Workers(len(addrs)))
	return d, nil
}

// Workers implements parallel.Dispatcher.
func (d *Dispatcher) Workers() int { return len(d.socks) }

// Mode implements parallel.Dispatcher.
func (d *Dispatcher) Mode() parallel.Mode { return parallel.Remote }

// Dispatch splits jobs into one contiguous chunk per worker and returns the
// paths in job order.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []parallel.Job) ([]parallel.Path, error) {
	if len(jobs) == 0 {
		return nil, ctx.Err()
	}

	out := make([]parallel.Path, len(jobs))
	workers := len(d.socks)
	chunkSize := (len(jobs) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w, lo := 0, 0; lo < len(jobs); w, lo = w+1, lo+chunkSize {
		hi := min(lo+chunkSize, len(jobs))
		g.Go(func() error {
			msg, err := NewMessage(MsgWalk, d.session, WalkRequest{Jobs: jobs[lo:hi]})
			if err != nil {
				return err
			}
			reply, err := d.call(gctx, w, msg)
			if err != nil {
				return err
			}
			if reply.Type != MsgPaths {
				return fmt.Errorf("%w: worker %s answered walk with %s", ErrProtocol, d.addrs[w], reply.Type)
			}
			var resp PathsResponse
			if err := reply.Decode(&resp); err != nil {
				return err
			}
			if len(resp.Paths) != hi-lo {
				return fmt.Errorf("%w: worker %s returned %d paths for %d jobs", ErrProtocol, d.addrs[w], len(resp.Paths), hi-lo)
			}
			for k, nodes := range resp.Paths {
				out[lo+k] = parallel.Path{Job: lo + k, Nodes: nodes}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

// call performs one request/reply exchange with worker i. Worker-side
// failures come back as parallel.ErrWorkerFailed.
func (d *Dispatcher) call(ctx context.Context, i int, msg *Message) (*Message, error) {
	frame, err := Encode(msg)
	if err != nil {
		return nil, err
	}

	type result struct {
		frame []byte
		err   error
	}
	done := make(chan result, 1)
	d.pending[i].Store(true)
	go func() {
		var res result
		if res.err = d.socks[i].Send(frame); res.err == nil {
			res.frame, res.err = d.socks[i].Recv()
		}
		// cleared before done is sent
		d.pending[i].Store(false)
		done <- res
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: worker %s: %v", parallel.ErrWorkerFailed, d.addrs[i], res.err)
	}

	reply, err := DecodeFrame(res.frame)
	if err != nil {
		return nil, err
	}
	if reply.Type == MsgError {
		var em ErrorMessage
		if err := reply.Decode(&em); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: worker %s: %s: %s", parallel.ErrWorkerFailed, d.addrs[i], em.Code, em.Message)
	}
	return reply, nil
}

// Close releases the session on every worker and closes the sockets. A
// worker still owing a reply from a cancelled call is not sent a release;
// closing its socket abandons the request.
func (d *Dispatcher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := range d.socks {
		if d.pending[i].Load() {
			d.logger.Warn("skipping session release, request outstanding", logging.String("addr", d.addrs[i]))
			continue
		}
		msg, err := NewMessage(MsgRelease, d.session, nil)
		if err != nil {
			continue
		}
		if _, err := d.call(ctx, i, msg); err != nil {
			d.logger.Warn("failed to release session", logging.String("addr", d.addrs[i]), logging.Error(err))
		}
	}
	d.metrics.SetRemoteWorkers(0)
	return d.closeSockets()
}

func (d *Dispatcher) closeSockets() error {
	var errs []error
	for _, sock := range d.socks {
		if sock == nil {
			continue
		}
		if err := sock.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
