// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var
func getFuzzRounds() int {
	if s := os.Getenv("FUZZ_ROUNDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or a time-based seed
func getFuzzSeed() int64 {
	if s := os.Getenv("FUZZ_SEED"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return time.Now().UnixNano()
}

// frameTimings builds a decode buffer: sync width then the data durations
func frameTimings(p ProtocolSpec, bits string) ([]uint32, int) {
	b, _ := ParseBitString(bits)
	pulses := ModulateBits(b, p)
	timings := make([]uint32, MaxChanges)
	timings[0] = p.SyncWidth()
	n := 1
	for _, d := range Durations(pulses[:len(pulses)-1]) {
		timings[n] = d
		n++
	}
	return timings, n
}

// feedRepeated feeds repeat repetitions of pulses and returns every decoded code
func feedRepeated(d *Demodulator, pulses []Pulse, repeat int) []DecodedCode {
	var codes []DecodedCode
	durations := Durations(pulses)
	for r := 0; r < repeat; r++ {
		for _, dur := range durations {
			if c, ok := d.Feed(dur); ok {
				codes = append(codes, c)
			}
		}
	}
	return codes
}

func TestDecodeTimings(t *testing.T) {
	p1 := mustProtocol(t, 1)

	timings, n := frameTimings(p1, "0110")
	code, err := DecodeTimings(timings, n, p1, DefaultTolerance)
	if err != nil {
		t.Fatalf("DecodeTimings failed: %v", err)
	}
	if code.Value != 6 || code.BitLength != 4 || code.ProtocolID != 1 || code.PulseLength != 350 {
		t.Errorf("got %+v, want value=6 bits=4 protocol=1 pulse=350", code)
	}
	if code.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

// Bounds are inclusive: 350µs units at 60% accept [140, 560] for a short high
func TestDecodeTimingsToleranceBoundary(t *testing.T) {
	p1 := mustProtocol(t, 1)

	tests := []struct {
		high   uint32
		wantOK bool
	}{
		{560, true},
		{561, false},
		{140, true},
		{139, false},
		{350, true},
	}

	for _, tt := range tests {
		timings, n := frameTimings(p1, "0110")
		timings[1] = tt.high
		_, err := DecodeTimings(timings, n, p1, DefaultTolerance)
		if tt.wantOK && err != nil {
			t.Errorf("high=%d: unexpected error %v", tt.high, err)
		}
		if !tt.wantOK && !errors.Is(err, ErrNoMatch) {
			t.Errorf("high=%d: error = %v, want ErrNoMatch", tt.high, err)
		}
	}
}

// The pulse unit is derived from the measured sync, not the nominal one
func TestDecodeTimingsDriftedTransmitter(t *testing.T) {
	p1 := mustProtocol(t, 1)
	fast := p1.WithPulseLength(320)

	timings, n := frameTimings(fast, "1011")
	code, err := DecodeTimings(timings, n, p1, DefaultTolerance)
	if err != nil {
		t.Fatalf("DecodeTimings failed: %v", err)
	}
	if code.PulseLength != 320 || code.Value != 11 {
		t.Errorf("got pulse=%d value=%d, want 320/11", code.PulseLength, code.Value)
	}
}

func TestDecodeTimingsRejects(t *testing.T) {
	p1 := mustProtocol(t, 1)

	// All zero bits decode to 0, which is never reported
	timings, n := frameTimings(p1, "0000")
	if _, err := DecodeTimings(timings, n, p1, DefaultTolerance); !errors.Is(err, ErrNoMatch) {
		t.Errorf("zero code: error = %v, want ErrNoMatch", err)
	}

	// Too short
	timings, n = frameTimings(p1, "11")
	if _, err := DecodeTimings(timings, n, p1, DefaultTolerance); !errors.Is(err, ErrNoMatch) {
		t.Errorf("short frame: error = %v, want ErrNoMatch", err)
	}

	// changeCount beyond the buffer
	if _, err := DecodeTimings(make([]uint32, 4), 10, p1, DefaultTolerance); !errors.Is(err, ErrNoMatch) {
		t.Errorf("oversized count: error = %v, want ErrNoMatch", err)
	}
}

func TestDecodeAnyPreference(t *testing.T) {
	p2 := mustProtocol(t, 2)

	timings, n := frameTimings(p2, "1001")
	code, err := DecodeAny(timings, n, Protocols(), DefaultTolerance)
	if err != nil {
		t.Fatalf("DecodeAny failed: %v", err)
	}
	if code.ProtocolID != 2 || code.PulseLength != 650 || code.Value != 9 {
		t.Errorf("got %+v, want protocol 2, pulse 650, value 9", code)
	}

	if _, err := DecodeAny(timings, n, nil, DefaultTolerance); !errors.Is(err, ErrNoMatch) {
		t.Errorf("no protocols: error = %v, want ErrNoMatch", err)
	}
}

func TestDemodulatorNeedsThreeSyncs(t *testing.T) {
	p1 := mustProtocol(t, 1)
	// F0FFFF0FFFFF decodes as 22 bits, not 12: each F is sent as a zero then a one pulse
	cw, _ := Encode(SchemeB{Group: 2, Switch: 3}, true)
	pulses, _ := ModulateCodeword(cw, p1)

	d := NewDemodulator(nil, 0)
	if codes := feedRepeated(d, pulses, 2); len(codes) != 0 {
		t.Fatalf("decoded after two repetitions: %v", codes)
	}
	if d.State() != StateSyncCandidate || d.RepeatCount() != 1 {
		t.Errorf("state=%s repeat=%d, want SYNC_CANDIDATE/1", d.State(), d.RepeatCount())
	}

	codes := feedRepeated(d, pulses, 1)
	if len(codes) != 1 {
		t.Fatalf("got %d codes after third repetition, want 1", len(codes))
	}
	if d.State() != StateSyncConfirmed || d.RepeatCount() != 0 || d.ChangeCount() != 1 {
		t.Errorf("state=%s repeat=%d changes=%d, want SYNC_CONFIRMED/0/1",
			d.State(), d.RepeatCount(), d.ChangeCount())
	}

	want, _ := cw.Bits()
	got := codes[0]
	if got.Value != want.Value() || got.BitLength != uint32(want.Len()) {
		t.Errorf("decoded value=%d bits=%d, want %d/%d", got.Value, got.BitLength, want.Value(), want.Len())
	}
	if got.BitLength != 22 {
		t.Errorf("BitLength = %d, want 22", got.BitLength)
	}
	if got.ProtocolID != 1 || got.PulseLength != 350 {
		t.Errorf("decoded protocol=%d pulse=%d, want 1/350", got.ProtocolID, got.PulseLength)
	}
}

// Ten repetitions decode on every second repeat after the first sync
func TestDemodulatorDefaultRepeat(t *testing.T) {
	p1 := mustProtocol(t, 1)
	cw, _ := Encode(SchemeC{Family: 'a', Group: 1, Device: 1}, false)
	pulses, _ := ModulateCodeword(cw, p1)

	d := NewDemodulator(nil, 0)
	codes := feedRepeated(d, pulses, DefaultRepeat)
	if len(codes) != 4 {
		t.Fatalf("got %d codes, want 4", len(codes))
	}

	stats := d.Statistics()
	if stats.SyncCandidates != 1 || stats.Decoded != 4 || stats.NoMatch != 0 {
		t.Errorf("stats = %+v", *stats)
	}
}

// Every scheme B address round trips through modulation and demodulation
func TestDemodulatorRoundTripSchemeB(t *testing.T) {
	for _, id := range []int{1, 2} {
		p := mustProtocol(t, id)
		for g := 1; g <= 4; g++ {
			for s := 1; s <= 4; s++ {
				for _, on := range []bool{true, false} {
					addr := SchemeB{Group: g, Switch: s}
					cw, err := Encode(addr, on)
					if err != nil {
						t.Fatalf("Encode(%+v) failed: %v", addr, err)
					}
					pulses, _ := ModulateCodeword(cw, p)

					codes := feedRepeated(NewDemodulator(nil, 0), pulses, 3)
					if len(codes) != 1 {
						t.Fatalf("protocol %d %+v on=%v: got %d codes, want 1", id, addr, on, len(codes))
					}
					if codes[0].ProtocolID != uint8(id) {
						t.Errorf("protocol %d %+v: decoded as protocol %d", id, addr, codes[0].ProtocolID)
					}

					back, err := codes[0].Codeword()
					if err != nil {
						t.Fatalf("Codeword() failed: %v", err)
					}
					gotAddr, gotOn, err := ParseSchemeB(back)
					if err != nil {
						t.Fatalf("ParseSchemeB(%s) failed: %v", back, err)
					}
					if gotAddr != addr || gotOn != on {
						t.Errorf("round trip %+v on=%v gave %+v on=%v", addr, on, gotAddr, gotOn)
					}
				}
			}
		}
	}
}

func TestDemodulatorBinaryRoundTrip(t *testing.T) {
	p1 := mustProtocol(t, 1)

	// 32 bits is the widest code that fits the buffer
	for _, bits := range []string{"101", "000101", "101010101010101010101010", "11111111111111111111111111111111"} {
		b, _ := ParseBitString(bits)
		codes := feedRepeated(NewDemodulator(nil, 0), ModulateBits(b, p1), 3)
		if len(codes) != 1 {
			t.Errorf("%s: got %d codes, want 1", bits, len(codes))
			continue
		}
		if codes[0].Value != b.Value() || codes[0].BitLength != uint32(b.Len()) {
			t.Errorf("%s: decoded %d/%d bits", bits, codes[0].Value, codes[0].BitLength)
		}
	}
}

func TestDemodulatorOverflow(t *testing.T) {
	d := NewDemodulator(nil, 0)

	for i := 0; i < MaxChanges; i++ {
		if _, ok := d.Feed(350); ok {
			t.Fatal("unexpected decode")
		}
	}
	if d.ChangeCount() != MaxChanges {
		t.Fatalf("ChangeCount() = %d, want %d", d.ChangeCount(), MaxChanges)
	}

	if _, ok := d.Feed(350); ok {
		t.Fatal("unexpected decode")
	}
	if d.ChangeCount() != 1 || d.RepeatCount() != 0 || d.State() != StateIdle {
		t.Errorf("after overflow: changes=%d repeat=%d state=%s", d.ChangeCount(), d.RepeatCount(), d.State())
	}
	if d.Statistics().Overflows != 1 {
		t.Errorf("Overflows = %d, want 1", d.Statistics().Overflows)
	}
}

// A sync that differs from the previous one starts a new candidate
func TestDemodulatorSyncMismatch(t *testing.T) {
	d := NewDemodulator(nil, 0)

	d.Feed(10850)
	d.Feed(350)
	d.Feed(1050)
	d.Feed(10850 + SyncMatchWindow)
	if d.RepeatCount() != 0 || d.ChangeCount() != 1 {
		t.Errorf("repeat=%d changes=%d, want 0/1", d.RepeatCount(), d.ChangeCount())
	}
	if d.Statistics().SyncCandidates != 2 {
		t.Errorf("SyncCandidates = %d, want 2", d.Statistics().SyncCandidates)
	}

	d.Feed(350)
	d.Feed(10850 + 2*SyncMatchWindow - 1)
	if d.RepeatCount() != 1 {
		t.Errorf("repeat=%d, want 1", d.RepeatCount())
	}
}

func TestDemodulatorReset(t *testing.T) {
	p1 := mustProtocol(t, 1)
	cw, _ := Encode(SchemeB{Group: 1, Switch: 1}, true)
	pulses, _ := ModulateCodeword(cw, p1)

	d := NewDemodulator(nil, 0)
	feedRepeated(d, pulses, 2)
	d.Reset()
	if d.ChangeCount() != 0 || d.RepeatCount() != 0 || d.State() != StateIdle {
		t.Errorf("after Reset: changes=%d repeat=%d state=%s", d.ChangeCount(), d.RepeatCount(), d.State())
	}

	// One more repetition is not enough after a reset
	if codes := feedRepeated(d, pulses, 1); len(codes) != 0 {
		t.Errorf("decoded %d codes after reset", len(codes))
	}
}

func TestDemodulatorProtocolFilter(t *testing.T) {
	p1 := mustProtocol(t, 1)
	p2 := mustProtocol(t, 2)
	cw, _ := Encode(SchemeB{Group: 3, Switch: 2}, false)
	pulses, _ := ModulateCodeword(cw, p1)

	d := NewDemodulator([]ProtocolSpec{p2}, 0)
	if codes := feedRepeated(d, pulses, 5); len(codes) != 0 {
		t.Errorf("protocol 2 only decoder decoded protocol 1 frames: %v", codes)
	}
	if d.Statistics().NoMatch == 0 {
		t.Error("expected NoMatch to be counted")
	}
}

// Noise that never repeats a sync width never decodes
func TestDemodulatorFuzzNoise(t *testing.T) {
	rounds := getFuzzRounds()
	seed := getFuzzSeed()
	rng := rand.New(rand.NewSource(seed))
	t.Logf("fuzz: rounds=%d seed=%d", rounds, seed)

	d := NewDemodulator(nil, 0)
	for i := 0; i < rounds*100; i++ {
		dur := uint32(rng.Intn(30000) + 1)
		if dur > SyncThreshold && matchesSync(dur, d.timings[0]) {
			continue
		}
		if c, ok := d.Feed(dur); ok {
			t.Fatalf("seed %d: noise decoded as %+v", seed, c)
		}
		if d.ChangeCount() < 1 || d.ChangeCount() > MaxChanges {
			t.Fatalf("seed %d: ChangeCount() = %d out of range", seed, d.ChangeCount())
		}
	}
}

// Random valid frames with random jitter inside the tolerance decode exactly
func TestDemodulatorFuzzJitter(t *testing.T) {
	rounds := getFuzzRounds()
	seed := getFuzzSeed()
	rng := rand.New(rand.NewSource(seed))
	t.Logf("fuzz: rounds=%d seed=%d", rounds, seed)

	p1 := mustProtocol(t, 1)
	for i := 0; i < rounds; i++ {
		length := rng.Intn(30) + 3
		value := rng.Uint64() & (1<<uint(length) - 1)
		if value == 0 {
			value = 1
		}
		b, _ := NewBitString(value, length)

		d := NewDemodulator(nil, 0)
		var codes []DecodedCode
		for r := 0; r < 3; r++ {
			for _, dur := range Durations(ModulateBits(b, p1)) {
				// ±25% of a unit stays well inside the 60% window
				jitter := int64(rng.Intn(175)) - 87
				if c, ok := d.Feed(uint32(int64(dur) + jitter)); ok {
					codes = append(codes, c)
				}
			}
		}
		if len(codes) != 1 || codes[0].Value != value || codes[0].BitLength != uint32(length) {
			t.Fatalf("seed %d round %d: %d bits value %d decoded as %v", seed, i, length, value, codes)
		}
	}
}
