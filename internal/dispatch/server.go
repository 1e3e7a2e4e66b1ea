// Package dispatch implements the single receive-decode-handle-respond loop
// that routes decoded bus frames to up to 256 application handlers by id.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shannmu/tcsp-server/internal/bus"
	"github.com/shannmu/tcsp-server/internal/envelope"
	"github.com/shannmu/tcsp-server/internal/logging"
	"github.com/shannmu/tcsp-server/internal/tcspmetrics"
)

const handlerTableSize = 256

// Server owns one bus adaptor and a fixed application handler table, and
// runs the single receive-decode-handle-respond loop.
type Server struct {
	adaptor bus.Adaptor
	table   [handlerTableSize]Application

	readyOnce sync.Once
	readyCh   chan struct{}

	wg     sync.WaitGroup
	logger *slog.Logger
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the default package logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer builds a dispatch server over adaptor and apps. Construction
// fails fatally if two applications claim the same id, naming both in the
// returned error.
func NewServer(adaptor bus.Adaptor, apps []Application, opts ...Option) (*Server, error) {
	s := &Server{
		adaptor: adaptor,
		readyCh: make(chan struct{}),
		logger:  logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	for _, app := range apps {
		id := app.ApplicationID()
		if existing := s.table[id]; existing != nil {
			return nil, fmt.Errorf("%w: id %d claimed by both %q and %q", ErrDuplicateApplication, id, existing.Name(), app.Name())
		}
		s.table[id] = app
	}
	return s, nil
}

// Ready closes once the server has started its receive loop.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Serve runs the receive-decode-handle-respond loop until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.wg.Add(1)
	defer s.wg.Done()
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("dispatch_ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		buf, err := s.adaptor.Recv()
		if err != nil {
			s.handleRecvError(err)
			continue
		}

		frame, err := envelope.Decode(buf)
		if err != nil {
			s.logger.Warn("envelope_decode_error", "error", err)
			tcspmetrics.IncMalformed(tcspmetrics.BusCAN)
			continue
		}

		handler := s.table[frame.Application]
		if handler == nil {
			s.logger.Warn("handler_not_found", "application", frame.Application)
			tcspmetrics.IncHandlerNotFound()
			continue
		}

		mtu := s.adaptor.MTU(buf.Meta.Flag) - envelope.HeaderSize
		if mtu < 0 {
			mtu = 0
		}
		resp, err := handler.Handle(ctx, frame, mtu)
		if err != nil {
			s.logger.Error("handler_error", "application", frame.Application, "error", err)
			tcspmetrics.IncHandlerError(frame.Application)
			continue
		}
		tcspmetrics.IncDispatched(frame.Application)
		if resp == nil {
			continue
		}

		respBuf, err := envelope.Encode(resp)
		if err != nil {
			s.logger.Error("envelope_encode_error", "application", frame.Application, "error", err)
			continue
		}
		if err := s.adaptor.Send(respBuf); err != nil {
			s.logger.Error("adaptor_send_error", "application", frame.Application, "error", err)
		}
	}
}

func (s *Server) handleRecvError(err error) {
	switch {
	case err == bus.ErrEmpty:
		return
	case bus.IsFrameError(err):
		s.logger.Warn("frame_error", "error", err)
		tcspmetrics.IncMalformed(tcspmetrics.BusCAN)
	case bus.IsBusError(err):
		s.logger.Error("bus_error", "error", err)
	default:
		s.logger.Error("recv_error", "error", err)
	}
}

// Shutdown waits for the in-flight Serve call to return (it observes ctx
// cancellation on its own) or for ctx to expire first.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrShutdownTimeout, ctx.Err())
	case <-done:
		return nil
	}
}
