// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// DefaultTimeout is how long a request waits for a reply, on top of the
// air time of a transmission
const DefaultTimeout = 2 * time.Second

// Option configures a Client
type Option func(*Client)

// WithLogger sets the diagnostics logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets the reply timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPacketHandler registers fn to observe every frame received from the
// bridge. fn runs on the reader goroutine and must not block.
func WithPacketHandler(fn func(*Packet)) Option {
	return func(c *Client) { c.onPacket = fn }
}

type reply struct {
	packet *Packet
	err    error
}

// Client talks to a pulse bridge over a byte stream.
//
// It implements rcswitch.TrainOutput and rcswitch.EdgeSource, so a
// Transmitter and Receiver can share one bridge through an rcswitch.Line.
// Requests are serialized; EDGES messages are delivered as they arrive.
type Client struct {
	conn     io.ReadWriteCloser
	log      zerolog.Logger
	timeout  time.Duration
	onPacket func(*Packet)

	writeMu sync.Mutex
	reqMu   sync.Mutex
	replies chan reply

	edgeMu sync.Mutex // held while delivering edges
	edgeFn func(uint32)

	statsMu sync.Mutex
	stats   *Statistics

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// NewClient starts a client on conn. The client owns conn.
func NewClient(conn io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		log:     zerolog.Nop(),
		timeout: DefaultTimeout,
		replies: make(chan reply, 1),
		stats:   NewStatistics(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Close closes the connection and waits for the reader to exit
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	<-c.done
	return err
}

// Done is closed when the connection is lost or closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the read error that ended the connection, if any
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

// Statistics returns a snapshot of the frame counters
func (c *Client) Statistics() Statistics {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := *c.stats
	s.CalculateRates()
	return s
}

// SetLevel is not available: the bridge times pulses itself
func (c *Client) SetLevel(bool) error {
	return ErrUnsupported
}

// EmitTrain transmits one repetition of pulses repeat times and waits for
// the bridge to report completion
func (c *Client) EmitTrain(ctx context.Context, pulses []rcswitch.Pulse, repeat int) error {
	timeout := rcswitch.TrainDuration(pulses, repeat) + c.timeout
	_, err := c.request(ctx, NewTransmit(pulses, repeat), MsgTransmitDone, timeout)
	return err
}

// Subscribe starts edge streaming to fn
func (c *Client) Subscribe(fn func(durationUs uint32)) error {
	c.edgeMu.Lock()
	c.edgeFn = fn
	c.edgeMu.Unlock()

	if err := c.send(NewSubscribe()); err != nil {
		c.edgeMu.Lock()
		c.edgeFn = nil
		c.edgeMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe stops edge streaming. No edge is delivered after it returns.
func (c *Client) Unsubscribe() error {
	c.edgeMu.Lock()
	c.edgeFn = nil
	c.edgeMu.Unlock()
	return c.send(NewUnsubscribe())
}

// PingResult is the outcome of a ping
type PingResult struct {
	Uptime    time.Duration // bridge uptime
	RoundTrip time.Duration
}

// Ping measures the round trip to the bridge
func (c *Client) Ping(ctx context.Context) (PingResult, error) {
	start := time.Now()
	p, err := c.request(ctx, NewPingRequest(), MsgPingResponse, c.timeout)
	if err != nil {
		return PingResult{}, err
	}
	rtt := time.Since(start)
	uptime, err := ParsePingResponse(p)
	if err != nil {
		return PingResult{}, err
	}
	return PingResult{Uptime: uptime, RoundTrip: rtt}, nil
}

func (c *Client) send(p *Packet) error {
	frame, err := Encode(p)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return err
	}
	c.log.Trace().Str("type", FormatMessageType(p.Type())).Int("bytes", len(frame)).Msg("frame sent")
	return nil
}

// request sends p and waits for a reply of type want or an ERROR
func (c *Client) request(ctx context.Context, p *Packet, want uint8, timeout time.Duration) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	// Drop a late reply to an earlier, abandoned request
	select {
	case <-c.replies:
	default:
	}

	if err := c.send(p); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case r := <-c.replies:
			if r.err != nil {
				return nil, r.err
			}
			if r.packet.Type() != want {
				c.log.Debug().Str("type", FormatMessageType(r.packet.Type())).Msg("ignoring stray reply")
				continue
			}
			return r.packet, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrTimeout
		case <-c.done:
			return nil, ErrConnectionClosed
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.done)

	decoder := NewDecoder()
	buf := make([]byte, 512)
	for {
		n, err := c.conn.Read(buf)
		for _, b := range buf[:n] {
			packet, derr := decoder.DecodeByte(b)
			if packet == nil && derr == nil {
				continue
			}

			c.statsMu.Lock()
			c.stats.Update(packet, derr)
			c.statsMu.Unlock()

			if derr != nil {
				c.log.Debug().Err(derr).Msg("frame dropped")
				continue
			}
			c.dispatch(packet)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.readErr = err
			}
			c.log.Debug().Err(err).Msg("bridge reader stopped")
			return
		}
	}
}

func (c *Client) dispatch(p *Packet) {
	if c.onPacket != nil {
		c.onPacket(p)
	}
	if err := p.ParseError(); err != nil {
		c.log.Debug().Err(err).Msg("malformed payload")
		return
	}

	switch p.Type() {
	case MsgEdges:
		durations, err := ParseEdges(p)
		if err != nil {
			c.log.Debug().Err(err).Msg("malformed EDGES")
			return
		}
		c.edgeMu.Lock()
		if c.edgeFn != nil {
			for _, d := range durations {
				c.edgeFn(d)
			}
		}
		c.edgeMu.Unlock()

	case MsgTransmitDone, MsgPingResponse:
		c.deliver(reply{packet: p})

	case MsgError:
		bridgeErr, err := ParseError(p)
		if err != nil {
			c.log.Debug().Err(err).Msg("malformed ERROR")
			return
		}
		c.log.Warn().Err(bridgeErr).Msg("bridge reported an error")
		c.deliver(reply{err: bridgeErr})

	default:
		c.log.Debug().Str("type", FormatMessageType(p.Type())).Msg("unexpected frame from bridge")
	}
}

func (c *Client) deliver(r reply) {
	select {
	case c.replies <- r:
	default:
		c.log.Debug().Msg("reply dropped, no request waiting")
	}
}
