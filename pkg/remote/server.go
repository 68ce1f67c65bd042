package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/walk"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	// Register transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Error codes sent in ErrorMessage.
const (
	CodeBadRequest = "bad_request"
	CodeNoSession  = "no_session"
	CodeWalkFailed = "walk_failed"
)

// pollInterval bounds how long Serve blocks before checking for shutdown.
const pollInterval = 200 * time.Millisecond

// Server is the worker side: it holds one sampler per controller session
// and answers walk requests.
type Server struct {
	logger logging.Logger

	mu       sync.Mutex
	sock     mangos.Socket
	sessions map[string]*walk.Sampler
}

// NewServer creates a worker. A nil logger discards output.
func NewServer(logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		logger:   logger.With(logging.Component("remote_worker")),
		sessions: make(map[string]*walk.Sampler),
	}
}

// Listen opens the REP socket on addr, e.g. tcp://0.0.0.0:7600.
func (s *Server) Listen(addr string) error {
	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, pollInterval); err != nil {
		sock.Close()
		return fmt.Errorf("failed to set receive deadline: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.sock = sock
	s.mu.Unlock()
	s.logger.Info("worker listening", logging.String("addr", addr))
	return nil
}

// Serve answers requests until ctx is done or the socket is closed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	sock := s.sock
	s.mu.Unlock()
	if sock == nil {
		return errors.New("server is not listening")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		frame, err := sock.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrRecvTimeout) {
				continue
			}
			if errors.Is(err, mangos.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if err := sock.Send(s.handle(frame)); err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to send reply", logging.Error(err))
		}
	}
}

// Close closes the socket and forgets every session.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*walk.Sampler)
	if s.sock == nil {
		return nil
	}
	err := s.sock.Close()
	s.sock = nil
	return err
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handle(frame []byte) []byte {
	msg, err := DecodeFrame(frame)
	if err != nil {
		s.logger.Warn("undecodable request", logging.Error(err))
		return errorFrame("", CodeBadRequest, err)
	}

	var reply *Message
	switch msg.Type {
	case MsgInit:
		reply, err = s.init(msg)
	case MsgWalk:
		reply, err = s.walk(msg)
	case MsgRelease:
		s.mu.Lock()
		delete(s.sessions, msg.Session)
		s.mu.Unlock()
		reply, err = NewMessage(MsgReady, msg.Session, ReadyResponse{})
	default:
		err = fmt.Errorf("%w: unexpected %s request", ErrProtocol, msg.Type)
	}
	if err != nil {
		code := CodeBadRequest
		switch {
		case errors.Is(err, errNoSession):
			code = CodeNoSession
		case errors.Is(err, errWalk):
			code = CodeWalkFailed
		}
		s.logger.Warn("request failed", logging.String("type", msg.Type.String()), logging.Error(err))
		return errorFrame(msg.Session, code, err)
	}

	out, err := Encode(reply)
	if err != nil {
		return errorFrame(msg.Session, CodeWalkFailed, err)
	}
	return out
}

var (
	errNoSession = errors.New("unknown session")
	errWalk      = errors.New("walk failed")
)

func (s *Server) init(msg *Message) (*Message, error) {
	var req InitRequest
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}
	table := &walk.Table{Neighbors: req.Neighbors, CumProbs: req.CumProbs}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[msg.Session] = walk.NewSampler(table, walk.NewRand(req.Seed))
	s.mu.Unlock()

	s.logger.Info("session started",
		logging.String("session", msg.Session),
		logging.Int("nodes", table.Len()),
	)
	return NewMessage(MsgReady, msg.Session, ReadyResponse{Nodes: table.Len()})
}

func (s *Server) walk(msg *Message) (reply *Message, err error) {
	s.mu.Lock()
	sampler, ok := s.sessions[msg.Session]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", errNoSession, msg.Session)
	}

	var req WalkRequest
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			reply, err = nil, fmt.Errorf("%w: %v", errWalk, r)
		}
	}()
	n := int32(sampler.Table().Len())
	paths := make([][]int32, len(req.Jobs))
	for i, job := range req.Jobs {
		if job.Start < 0 || job.Start >= n || job.Budget < 0 {
			return nil, fmt.Errorf("%w: job %d starts at %d with budget %d", errWalk, i, job.Start, job.Budget)
		}
		paths[i] = sampler.Walk(job.Start, job.Budget)
	}
	return NewMessage(MsgPaths, msg.Session, PathsResponse{Paths: paths})
}
