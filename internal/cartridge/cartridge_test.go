package cartridge

import (
	"bytes"
	"testing"
)

// buildINES assembles a minimal iNES image: header, optional trainer,
// PRG-ROM, then CHR-ROM (omitted entirely when chrBanks is 0, signaling
// CHR-RAM per header[5]==0).
func buildINES(prgBanks, chrBanks int, flags6, flags7 uint8, trainer bool) []byte {
	var buf bytes.Buffer
	buf.WriteString(iNESMagic)
	buf.WriteByte(uint8(prgBanks))
	buf.WriteByte(uint8(chrBanks))
	buf.WriteByte(flags6)
	buf.WriteByte(flags7)
	buf.Write(make([]byte, 8)) // PRG-RAM size, TV system, padding

	if trainer {
		buf.Write(make([]byte, trainerSize))
	}
	buf.Write(make([]byte, prgBanks*prgBankSize))
	if chrBanks > 0 {
		buf.Write(make([]byte, chrBanks*chrBankSize))
	}
	return buf.Bytes()
}

func TestLoadFromReaderRejectsBadMagic(t *testing.T) {
	data := buildINES(1, 1, 0, 0, false)
	data[0] = 'X'
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad iNES magic")
	}
}

func TestLoadFromReaderRejectsZeroPRG(t *testing.T) {
	data := buildINES(0, 1, 0, 0, false)
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for zero PRG-ROM size")
	}
}

func TestLoadFromReaderRejectsUnsupportedMapper(t *testing.T) {
	data := buildINES(1, 1, 0x10, 0, false) // mapper 1 in flags6 high nibble
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for unsupported mapper")
	}
}

func TestLoadFromReaderSkipsTrainer(t *testing.T) {
	data := buildINES(1, 1, 0x04, 0, true) // flags6 bit2 = trainer present
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.prgROM) != prgBankSize {
		t.Fatalf("PRG-ROM size = %d, want %d", len(cart.prgROM), prgBankSize)
	}
}

func TestLoadFromReaderMirroringFromFlags6(t *testing.T) {
	cases := []struct {
		name   string
		flags6 uint8
		want   MirrorMode
	}{
		{"horizontal", 0x00, MirrorHorizontal},
		{"vertical", 0x01, MirrorVertical},
		{"four-screen overrides bit0", 0x08 | 0x01, MirrorFourScreen},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data := buildINES(1, 1, c.flags6, 0, false)
			cart, err := LoadFromReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cart.GetMirrorMode() != c.want {
				t.Errorf("mirror mode = %v, want %v", cart.GetMirrorMode(), c.want)
			}
		})
	}
}

func TestLoadFromReaderCHRRAMWhenHeaderCHRSizeZero(t *testing.T) {
	data := buildINES(1, 0, 0, 0, false)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cart.hasCHRRAM {
		t.Error("expected CHR-RAM when header CHR size is zero")
	}
	if len(cart.chrROM) != chrBankSize {
		t.Errorf("CHR storage size = %d, want %d", len(cart.chrROM), chrBankSize)
	}
}

// PRG mirroring: a 16 KiB PRG-ROM must mirror into both $8000 and $C000
// (spec §6, cartridge iNES contract).
func TestReadPRGSixteenKiBMirrorsIntoBothBanks(t *testing.T) {
	data := buildINES(1, 1, 0, 0, false)
	// Stamp a marker at offset 0 of PRG-ROM so both windows can be checked.
	prgStart := iNESHeaderSize
	data[prgStart] = 0x42
	data[prgStart+prgBankSize-1] = 0x99

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cart.ReadPRG(0x8000); got != 0x42 {
		t.Errorf("ReadPRG(0x8000) = %#02x, want 0x42", got)
	}
	if got := cart.ReadPRG(0xC000); got != 0x42 {
		t.Errorf("ReadPRG(0xC000) = %#02x, want 0x42 (mirrored bank)", got)
	}
	if got := cart.ReadPRG(0xBFFF); got != 0x99 {
		t.Errorf("ReadPRG(0xBFFF) = %#02x, want 0x99", got)
	}
	if got := cart.ReadPRG(0xFFFF); got != 0x99 {
		t.Errorf("ReadPRG(0xFFFF) = %#02x, want 0x99 (mirrored bank)", got)
	}
}

// A 32 KiB PRG-ROM fills $8000-$FFFF directly, with no mirroring.
func TestReadPRGThirtyTwoKiBFillsFullRange(t *testing.T) {
	data := buildINES(2, 1, 0, 0, false)
	prgStart := iNESHeaderSize
	data[prgStart] = 0x11
	data[prgStart+prgBankSize] = 0x22 // first byte of the second 16KiB bank

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cart.ReadPRG(0x8000); got != 0x11 {
		t.Errorf("ReadPRG(0x8000) = %#02x, want 0x11", got)
	}
	if got := cart.ReadPRG(0xC000); got != 0x22 {
		t.Errorf("ReadPRG(0xC000) = %#02x, want 0x22 (distinct bank, no mirror)", got)
	}
}

func TestSRAMRoundTrip(t *testing.T) {
	data := buildINES(1, 1, 0, 0, false)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cart.WritePRG(0x6000, 0xAB)
	cart.WritePRG(0x7FFF, 0xCD)

	snap := cart.SRAMSnapshot()
	if snap[0] != 0xAB || snap[len(snap)-1] != 0xCD {
		t.Fatalf("unexpected SRAM snapshot contents")
	}

	restored := make([]uint8, len(snap))
	copy(restored, snap)
	restored[1] = 0xEE

	cart.RestoreSRAM(restored)
	if got := cart.ReadPRG(0x6001); got != 0xEE {
		t.Errorf("ReadPRG(0x6001) after restore = %#02x, want 0xEE", got)
	}
}
