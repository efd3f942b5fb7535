package apu

import "testing"

func TestNewAPUDefaults(t *testing.T) {
	a := New()

	if a.sampleRate != 44100 {
		t.Errorf("expected default sample rate 44100, got %d", a.sampleRate)
	}
	if a.frameMode {
		t.Error("expected 4-step frame mode by default")
	}
	if !a.frameIRQEnable {
		t.Error("expected frame IRQ enabled by default")
	}
	if a.noise.ShiftRegister != 1 {
		t.Errorf("expected noise shift register seeded to 1, got %d", a.noise.ShiftRegister)
	}
}

func TestWritePulseTimerHighLoadsLength(t *testing.T) {
	a := New()

	a.WriteRegister(0x4000, 0x00)
	a.WriteRegister(0x4003, 0x08) // length index 1 -> lengthTable[1] = 254

	if a.pulse1.LengthCounter != 254 {
		t.Errorf("expected pulse1 length counter 254, got %d", a.pulse1.LengthCounter)
	}
	if !a.pulse1.EnvelopeStart {
		t.Error("expected envelope start flag set after $4003 write")
	}
	if a.pulse1.DutyIndex != 0 {
		t.Errorf("expected duty index reset to 0, got %d", a.pulse1.DutyIndex)
	}
}

func TestLengthTableMatchesCanonicalNESValues(t *testing.T) {
	want := [32]uint8{
		10, 254, 20, 2, 40, 4, 80, 6,
		160, 8, 60, 10, 14, 12, 26, 14,
		12, 16, 24, 18, 48, 20, 96, 22,
		192, 24, 72, 26, 16, 28, 32, 30,
	}

	if lengthTable != want {
		t.Errorf("lengthTable diverges from the canonical NES table: got %v", lengthTable)
	}
}

func TestWriteChannelEnableClearsLengthCounters(t *testing.T) {
	a := New()
	a.pulse1.LengthCounter = 10
	a.pulse2.LengthCounter = 10
	a.triangle.LengthCounter = 10
	a.noise.LengthCounter = 10

	a.WriteRegister(0x4015, 0x00)

	if a.pulse1.LengthCounter != 0 || a.pulse2.LengthCounter != 0 ||
		a.triangle.LengthCounter != 0 || a.noise.LengthCounter != 0 {
		t.Error("expected all length counters cleared when their channel is disabled")
	}
}

func TestReadStatusReportsActiveChannelsAndClearsIRQ(t *testing.T) {
	a := New()
	a.pulse1.LengthCounter = 1
	a.triangle.LengthCounter = 1
	a.frameIRQFlag = true

	status := a.ReadStatus()

	if status&0x01 == 0 {
		t.Error("expected pulse1 active bit set")
	}
	if status&0x04 == 0 {
		t.Error("expected triangle active bit set")
	}
	if status&0x10 != 0 {
		t.Error("expected DMC active bit (4) to always read zero")
	}
	if status&0x40 == 0 {
		t.Error("expected frame IRQ bit set on the read that observes it")
	}
	if a.frameIRQFlag {
		t.Error("expected reading $4015 to clear the frame IRQ flag")
	}
}

func TestDMCRegistersAreAcceptedAndDiscarded(t *testing.T) {
	a := New()

	// Writing the DMC register range must not panic and must not affect any
	// other channel's state, since DMC is not implemented.
	a.WriteRegister(0x4010, 0xFF)
	a.WriteRegister(0x4011, 0xFF)
	a.WriteRegister(0x4012, 0xFF)
	a.WriteRegister(0x4013, 0xFF)

	status := a.ReadStatus()
	if status&0x10 != 0 {
		t.Error("expected DMC active bit to remain zero after DMC register writes")
	}
}

func TestWriteFrameCounterFiveStepClocksImmediately(t *testing.T) {
	a := New()
	a.pulse1.LengthCounter = 5
	a.pulse1.EnvelopeDisable = false
	a.pulse1.EnvelopeStart = false
	a.pulse1.EnvelopeCounter = 3

	a.WriteRegister(0x4017, 0x80) // 5-step mode

	if !a.frameMode {
		t.Error("expected 5-step frame mode after writing $80 to $4017")
	}
	if a.frameCounterStep != 0 {
		t.Errorf("expected frame counter step reset to 0, got %d", a.frameCounterStep)
	}
	if a.pulse1.LengthCounter != 4 {
		t.Errorf("expected immediate length clock 5 -> 4, got %d", a.pulse1.LengthCounter)
	}
	if a.pulse1.EnvelopeCounter != 2 {
		t.Errorf("expected immediate envelope clock 3 -> 2, got %d", a.pulse1.EnvelopeCounter)
	}
}

func TestWriteFrameCounterDisablingIRQClearsFlag(t *testing.T) {
	a := New()
	a.frameIRQFlag = true

	a.WriteRegister(0x4017, 0x40) // disable frame IRQ

	if a.frameIRQEnable {
		t.Error("expected frame IRQ disabled")
	}
	if a.frameIRQFlag {
		t.Error("expected frame IRQ flag cleared when IRQ is disabled")
	}
}

func TestGetStateRoundTrip(t *testing.T) {
	a := New()
	a.WriteRegister(0x4000, 0x3F)
	a.WriteRegister(0x4002, 0x55)
	a.WriteRegister(0x4003, 0x08)
	a.WriteRegister(0x400C, 0x1F)
	a.noise.ShiftRegister = 0x1234

	saved := a.GetState()

	fresh := New()
	fresh.RestoreState(saved)

	if fresh.pulse1 != a.pulse1 {
		t.Errorf("pulse1 did not round-trip: got %+v, want %+v", fresh.pulse1, a.pulse1)
	}
	if fresh.noise.ShiftRegister != 0x1234 {
		t.Errorf("expected noise shift register 0x1234 after restore, got %#x", fresh.noise.ShiftRegister)
	}
	if fresh.frameIRQEnable != a.frameIRQEnable {
		t.Error("expected frameIRQEnable to round-trip")
	}
}

func TestMixChannelsSilentWhenAllZero(t *testing.T) {
	a := New()

	out := a.mixChannels(0, 0, 0, 0)

	if out != -1.0 {
		t.Errorf("expected silent mix to map to -1.0, got %v", out)
	}
}

func TestIsChannelEnabledBounds(t *testing.T) {
	a := New()
	a.channelEnable = [4]bool{true, false, true, false}

	if !a.IsChannelEnabled(0) {
		t.Error("expected channel 0 enabled")
	}
	if a.IsChannelEnabled(1) {
		t.Error("expected channel 1 disabled")
	}
	if a.IsChannelEnabled(4) {
		t.Error("expected out-of-range channel index to report disabled")
	}
}
