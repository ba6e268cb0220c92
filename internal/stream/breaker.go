package stream

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fenilsonani/smarthttp/internal/giterr"
)

// BreakerSettings configures the connect circuit breaker.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive connect failures that opens
	// the breaker. Zero disables the breaker.
	FailureThreshold uint32

	// MaxRequests is the number of trial connects allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period after which counts are cleared while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
}

// BreakerFactory wraps the streams produced by next so that Connect runs
// through a circuit breaker kept per host:port. Once a server has refused
// enough connects in a row, further connects fail immediately with a network
// error until the breaker timeout has passed.
func BreakerFactory(next Factory, settings BreakerSettings) Factory {
	if settings.FailureThreshold == 0 {
		return next
	}

	var (
		mu       sync.Mutex
		breakers = make(map[string]*gobreaker.CircuitBreaker[struct{}])
	)
	breakerFor := func(addr string) *gobreaker.CircuitBreaker[struct{}] {
		mu.Lock()
		defer mu.Unlock()
		cb, ok := breakers[addr]
		if !ok {
			cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
				Name:        addr,
				MaxRequests: settings.MaxRequests,
				Interval:    settings.Interval,
				Timeout:     settings.Timeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= settings.FailureThreshold
				},
			})
			breakers[addr] = cb
		}
		return cb
	}

	return func(host string, port int) Stream {
		return &breakerStream{
			Stream: next(host, port),
			cb:     breakerFor(net.JoinHostPort(host, strconv.Itoa(port))),
		}
	}
}

type breakerStream struct {
	Stream
	cb *gobreaker.CircuitBreaker[struct{}]
}

// Unwrap returns the guarded stream so its optional capabilities stay visible.
func (s *breakerStream) Unwrap() Stream {
	return s.Stream
}

func (s *breakerStream) Connect() error {
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.Stream.Connect()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return giterr.Network("connect", err)
	}
	return err
}

// BreakerState returns the breaker state guarding s, and false when s is not
// guarded by a breaker.
func BreakerState(s Stream) (gobreaker.State, bool) {
	bs, ok := s.(*breakerStream)
	if !ok {
		return gobreaker.StateClosed, false
	}
	return bs.cb.State(), true
}
