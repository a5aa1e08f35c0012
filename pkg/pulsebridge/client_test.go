// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// fakeBridge plays the firmware side of a pipe
type fakeBridge struct {
	t    *testing.T
	conn net.Conn

	mu         sync.Mutex
	subscribed bool
	received   []*Packet
	transmits  int

	// reply overrides the default response to a request
	reply func(p *Packet) *Packet
	done  chan struct{}
}

func newFakeBridge(t *testing.T, opts ...Option) (*fakeBridge, *Client) {
	t.Helper()
	hostSide, bridgeSide := net.Pipe()
	b := &fakeBridge{t: t, conn: bridgeSide, done: make(chan struct{})}
	go b.run()

	c := NewClient(hostSide, opts...)
	t.Cleanup(func() {
		c.Close()
		bridgeSide.Close()
		<-b.done
	})
	return b, c
}

func (b *fakeBridge) run() {
	defer close(b.done)
	decoder := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := b.conn.Read(buf)
		for _, c := range buf[:n] {
			p, _ := decoder.DecodeByte(c)
			if p != nil {
				b.handle(p)
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *fakeBridge) handle(p *Packet) {
	b.mu.Lock()
	b.received = append(b.received, p)
	reply := b.reply
	switch p.Type() {
	case MsgSubscribe:
		b.subscribed = true
	case MsgUnsubscribe:
		b.subscribed = false
	case MsgTransmit:
		b.transmits++
	}
	b.mu.Unlock()

	var resp *Packet
	if reply != nil {
		resp = reply(p)
	} else {
		switch p.Type() {
		case MsgTransmit:
			resp = NewTransmitDone()
		case MsgPingRequest:
			resp = NewPingResponse(42 * time.Second)
		}
	}
	if resp != nil {
		b.write(resp)
	}
}

func (b *fakeBridge) write(p *Packet) {
	frame, err := Encode(p)
	if err != nil {
		b.t.Errorf("fake bridge encode failed: %v", err)
		return
	}
	b.conn.Write(frame)
}

func (b *fakeBridge) isSubscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed
}

// waitFor polls cond until it holds or a second has passed
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClientPing(t *testing.T) {
	_, c := newFakeBridge(t)

	res, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if res.Uptime != 42*time.Second {
		t.Errorf("Uptime = %v, want 42s", res.Uptime)
	}
	if res.RoundTrip <= 0 {
		t.Errorf("RoundTrip = %v", res.RoundTrip)
	}
}

func TestClientEmitTrain(t *testing.T) {
	b, c := newFakeBridge(t)

	pulses := []rcswitch.Pulse{{High: 350, Low: 1050}, {High: 350, Low: 10850}}
	if err := c.EmitTrain(context.Background(), pulses, 5); err != nil {
		t.Fatalf("EmitTrain failed: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transmits != 1 {
		t.Fatalf("bridge saw %d transmits, want 1", b.transmits)
	}
	got, repeat, err := ParseTransmit(b.received[len(b.received)-1])
	if err != nil {
		t.Fatalf("ParseTransmit failed: %v", err)
	}
	if repeat != 5 || len(got) != 2 || got[1] != pulses[1] {
		t.Errorf("bridge got %v x%d", got, repeat)
	}
}

func TestClientBridgeError(t *testing.T) {
	b, c := newFakeBridge(t)
	b.reply = func(p *Packet) *Packet {
		return NewError(ErrorBusy, "still transmitting")
	}

	err := c.EmitTrain(context.Background(), []rcswitch.Pulse{{High: 1, Low: 1}}, 1)
	var bridgeErr *BridgeError
	if !errors.As(err, &bridgeErr) || bridgeErr.Code != ErrorBusy {
		t.Fatalf("error = %v, want BridgeError BUSY", err)
	}
	if bridgeErr.Message != "still transmitting" {
		t.Errorf("Message = %q", bridgeErr.Message)
	}
}

func TestClientTimeout(t *testing.T) {
	b, c := newFakeBridge(t, WithTimeout(20*time.Millisecond))
	b.reply = func(*Packet) *Packet { return nil }

	if _, err := c.Ping(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Ping(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// A reply that arrives after its request gave up is not taken as the next reply
func TestClientDropsLateReply(t *testing.T) {
	b, c := newFakeBridge(t, WithTimeout(20*time.Millisecond))

	release := make(chan struct{})
	b.reply = func(p *Packet) *Packet {
		if p.Type() == MsgPingRequest {
			<-release
			return NewPingResponse(time.Second)
		}
		return NewTransmitDone()
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	if _, err := c.Ping(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}

	// The late PING_RESPONSE lands in between, the transmit still waits for its own reply
	time.Sleep(60 * time.Millisecond)
	if err := c.EmitTrain(context.Background(), []rcswitch.Pulse{{High: 1, Low: 1}}, 1); err != nil {
		t.Errorf("EmitTrain failed: %v", err)
	}
}

func TestClientEdgeSource(t *testing.T) {
	b, c := newFakeBridge(t)

	var mu sync.Mutex
	var got []uint32
	if err := c.Subscribe(func(d uint32) {
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitFor(t, "bridge subscription", b.isSubscribed)

	b.write(NewEdges([]uint32{350, 1050, 10850}))
	waitFor(t, "edges", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})

	if err := c.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	waitFor(t, "bridge unsubscribe", func() bool { return !b.isSubscribed() })

	// Edges after Unsubscribe are never delivered
	b.write(NewEdges([]uint32{1, 2}))
	if _, err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[2] != 10850 {
		t.Errorf("got %v, want [350 1050 10850]", got)
	}

	s := c.Statistics()
	if s.EdgeMessages != 2 || s.Edges != 5 {
		t.Errorf("statistics = %+v", s)
	}
}

func TestClientSetLevelUnsupported(t *testing.T) {
	_, c := newFakeBridge(t)
	if err := c.SetLevel(true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetLevel() error = %v, want ErrUnsupported", err)
	}
}

func TestClientClosed(t *testing.T) {
	b, c := newFakeBridge(t)
	b.conn.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client did not notice the closed connection")
	}
	if _, err := c.Ping(context.Background()); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("error = %v, want ErrConnectionClosed", err)
	}
}

func TestClientPacketHandler(t *testing.T) {
	var mu sync.Mutex
	var types []uint8
	_, c := newFakeBridge(t, WithPacketHandler(func(p *Packet) {
		mu.Lock()
		types = append(types, p.Type())
		mu.Unlock()
	}))

	if _, err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(types) != 1 || types[0] != MsgPingResponse {
		t.Errorf("handler saw %v", types)
	}
}

// Transmitter and Receiver share one bridge through a Line
func TestClientWithTransmitterAndReceiver(t *testing.T) {
	b, c := newFakeBridge(t)
	p1, _ := rcswitch.LookupProtocol(1)

	line := rcswitch.NewLine(c)
	rx := rcswitch.NewReceiver(line)
	if err := rx.EnableReceive(); err != nil {
		t.Fatalf("EnableReceive failed: %v", err)
	}
	defer rx.DisableReceive()
	waitFor(t, "bridge subscription", b.isSubscribed)

	// The bridge echoes what it transmits, as a radio would pick up
	var sawSubscribedDuringTransmit bool
	b.reply = func(p *Packet) *Packet {
		if p.Type() != MsgTransmit {
			return nil
		}
		b.mu.Lock()
		if b.subscribed {
			sawSubscribedDuringTransmit = true
		}
		b.mu.Unlock()
		pulses, repeat, _ := ParseTransmit(p)
		var d []uint32
		for r := 0; r < repeat; r++ {
			d = append(d, rcswitch.Durations(pulses)...)
		}
		b.write(NewEdges(d))
		return NewTransmitDone()
	}

	tx := rcswitch.NewTransmitter(c, line)
	if err := tx.Switch(context.Background(), rcswitch.SchemeB{Group: 1, Switch: 4}, true, p1); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if sawSubscribedDuringTransmit {
		t.Error("bridge was subscribed while transmitting")
	}
	waitFor(t, "resubscribe", b.isSubscribed)
	if code, ok := rx.TakeDecoded(); ok {
		t.Errorf("receiver decoded its own transmission: %+v", code)
	}

	// Another transmitter's signal is decoded
	cw, _ := rcswitch.Encode(rcswitch.SchemeB{Group: 2, Switch: 1}, false)
	pulses, _ := rcswitch.ModulateCodeword(cw, p1)
	var d []uint32
	for r := 0; r < 3; r++ {
		d = append(d, rcswitch.Durations(pulses)...)
	}
	b.write(NewEdges(d))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := rx.WaitDecoded(ctx)
	if err != nil {
		t.Fatalf("WaitDecoded failed: %v", err)
	}
	got, _ := code.Codeword()
	if got.String() != cw.String() {
		t.Errorf("decoded %s, want %s", got, cw)
	}
}
