// Package server accepts raw TCP connections and hands each one to the hub
// as a line-protocol session.
package server

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

const maxAcceptBackoff = time.Second

// ServeTCP accepts connections on ln until it is closed. It returns nil when
// ln is closed by Shutdown and the accept error otherwise.
func (s *Server) ServeTCP(ln net.Listener) error {
	if !s.trackListener(ln) {
		return nil
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("Line protocol listener started")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				log.Warn().Err(err).Dur("retry_in", backoff).Msg("Accept error")
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		session := NewSession(NewTCPConn(conn, s.cfg.MaxMessageSize), s.hub, s.cfg)
		s.hub.Attach(session)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}
