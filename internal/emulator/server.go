// internal/emulator/server.go
package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"based-connect/internal/driver/bose"
)

// splitDelay spaces the single-byte writes of a split response
const splitDelay = 2 * time.Millisecond

// Server answers protocol frames for a Headset over stream connections
type Server struct {
	headset *Headset
	logger  *zap.Logger

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a server for the given headset
func NewServer(headset *Headset, logger *zap.Logger) *Server {
	return &Server{
		headset: headset,
		logger:  logger.With(zap.String("component", "emulator-server")),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Headset returns the emulated headset
func (s *Server) Headset() *Headset {
	return s.headset
}

// ListenAndServe listens on the TCP address and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done. It closes the
// listener and every open connection before returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Emulator listening", zap.String("address", listener.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		s.closeConnections()
		listener.Close()
	})
	defer stop()

	defer s.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Emulator stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		if !s.track(conn, true) {
			// Accepted while shutting down, after the open connections were closed
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(conn)
		}()
	}
}

// track adds or removes conn from the open set. Adding fails once the
// server has started closing connections.
func (s *Server) track(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !add {
		delete(s.conns, conn)
		return true
	}
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closing = true
	for conn := range s.conns {
		conn.Close()
	}
}

// handle runs one client conversation. Frames may arrive split across reads
// or several per read.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("Client connected")

	ex := s.headset.newExchange()
	var buf []byte
	chunk := make([]byte, bose.MaxFrameSize)

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = s.drain(conn, ex, buf, logger)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Client read failed", zap.Error(err))
			}
			logger.Debug("Client disconnected")
			return
		}
	}
}

// drain answers every complete frame in buf and returns the unconsumed rest
func (s *Server) drain(conn net.Conn, ex *exchange, buf []byte, logger *zap.Logger) []byte {
	for len(buf) > 0 {
		frame, n, err := bose.DecodeFrame(buf)
		switch {
		case err == nil:
			buf = buf[n:]
			s.write(conn, ex.respond(frame), logger)

		case errors.Is(err, bose.ErrTruncated):
			return buf

		case errors.Is(err, bose.ErrChecksumMismatch):
			// The header is intact, so the sender can be told which request failed
			frameLen, _ := bose.FrameLength(buf)
			op := bose.MakeOpcode(buf[1], buf[2])
			logger.Debug("Request checksum mismatch", zap.Stringer("opcode", op))
			buf = buf[frameLen:]
			s.write(conn, reply{frame: errorFrame(op, bose.DeviceErrChecksum)}, logger)

		default:
			// Resynchronise on the next start byte
			logger.Debug("Discarding malformed input", zap.Error(err), zap.Binary("data", buf))
			buf = buf[1:]
		}
	}
	return buf
}

func (s *Server) write(conn net.Conn, r reply, logger *zap.Logger) {
	if r.frame == nil {
		logger.Debug("Response dropped")
		return
	}

	var err error
	if r.split {
		for i := range r.frame {
			if _, err = conn.Write(r.frame[i : i+1]); err != nil {
				break
			}
			time.Sleep(splitDelay)
		}
	} else {
		_, err = conn.Write(r.frame)
	}

	if err != nil {
		logger.Debug("Response write failed", zap.Error(err))
		return
	}
	logger.Debug("Response sent", zap.Binary("frame", r.frame))
}
