// Package ppu implements the Picture Processing Unit for the NES.
package ppu

import (
	"gones/internal/memory"
)

// Scanlines per frame: 240 visible + 1 post-render + 20 vblank + 1
// pre-render.
const (
	visibleScanlines  = 240
	vblankStartLine   = 241
	preRenderLine     = 261
	scanlinesPerFrame = 262
	cyclesPerScanline = 341
)

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	// PPU Registers (CPU-visible)
	ppuCtrl   uint8 // $2000 - PPUCTRL
	ppuMask   uint8 // $2001 - PPUMASK
	ppuStatus uint8 // $2002 - PPUSTATUS
	oamAddr   uint8 // $2003 - OAMADDR
	oamData   uint8 // $2004 - OAMDATA (read/write buffer)
	ppuScroll uint8 // $2005 - PPUSCROLL (write buffer)
	ppuAddr   uint8 // $2006 - PPUADDR (write buffer)
	ppuData   uint8 // $2007 - PPUDATA (read/write buffer)

	// Loopy scroll state: v/t are 15-bit VRAM addresses, x is fine-X
	// scroll, w is the shared write-toggle for $2005/$2006.
	v uint16
	t uint16
	x uint8
	w bool

	memory *memory.PPUMemory

	scanline   int
	cycle      int
	frameCount uint64
	oddFrame   bool
	readBuffer uint8

	// sprite0HitThisFrame gates the fine-X component of the effective X
	// scroll: once sprite-0 hit has fired this frame, fineX is zeroed for
	// all subsequent scanlines. This is the source's documented (if
	// unusual) scroll-split heuristic, preserved per SPEC_FULL.md's open
	// question decision rather than replaced with the canonical loopy model.
	sprite0HitThisFrame bool

	oam          [256]uint8
	secondaryOAM [8]spriteSlot
	spriteCount  int

	sprite0Hit     bool
	spriteOverflow bool

	frameBuffer [256 * 240]uint32

	nmiCallback           func()
	frameCompleteCallback func()

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	cycleCount uint64
}

// spriteSlot is one entry of secondary OAM: the sprite's raw OAM fields
// plus the original OAM index (needed to recognize sprite 0).
type spriteSlot struct {
	y, tile, attr, x uint8
	oamIndex         int
}

// New creates a new PPU instance.
func New() *PPU {
	return &PPU{
		scanline:   preRenderLine,
		cycle:      0,
		frameCount: 0,
	}
}

// Reset resets the PPU to initial state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0xA0
	p.oamAddr = 0
	p.oamData = 0
	p.ppuScroll = 0
	p.ppuAddr = 0
	p.ppuData = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false

	p.scanline = preRenderLine
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.readBuffer = 0
	p.sprite0HitThisFrame = false

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false

	p.cycleCount = 0

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0x000000
	}
}

// SetMemory sets the PPU memory interface.
func (p *PPU) SetMemory(memory *memory.PPUMemory) {
	p.memory = memory
}

// Memory returns the PPU's attached memory, for save-state capture/restore.
func (p *PPU) Memory() *memory.PPUMemory {
	return p.memory
}

// SetNMICallback sets the NMI callback function.
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback sets the frame complete callback.
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// ReadRegister reads from a PPU register (CPU $2000-$2007).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2000, 0x2001, 0x2003, 0x2005, 0x2006: // write-only registers
		return p.ppuStatus & 0x1F
	case 0x2002: // PPUSTATUS
		status := p.ppuStatus
		p.ppuStatus &= 0x7F // clear vblank flag only; sprite-0-hit/overflow clear at pre-render
		p.w = false
		return status
	case 0x2004: // OAMDATA
		return p.oam[p.oamAddr]
	case 0x2007: // PPUDATA
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007).
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000: // PPUCTRL
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001: // PPUMASK
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002: // PPUSTATUS - read only, writes ignored
	case 0x2003: // OAMADDR
		p.oamAddr = value
	case 0x2004: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005: // PPUSCROLL
		p.writePPUScroll(value)
	case 0x2006: // PPUADDR
		p.writePPUAddr(value)
	case 0x2007: // PPUDATA
		p.writePPUData(value)
	}
}

// WriteOAM writes to OAM at the specified address (for DMA).
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// Step advances the PPU by one PPU cycle (the scheduler calls this three
// times per CPU cycle). Rendering itself is scanline-accurate, not
// dot-accurate: a scanline's full pixel row is produced in one shot when
// its final cycle completes.
func (p *PPU) Step() {
	p.cycleCount++
	p.cycle++

	if p.cycle < cyclesPerScanline {
		return
	}
	p.cycle = 0

	if p.scanline < visibleScanlines {
		p.renderScanline(p.scanline)
	}

	p.scanline++

	switch p.scanline {
	case vblankStartLine:
		p.ppuStatus |= 0x80
		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	case preRenderLine:
		p.ppuStatus &= 0x7F
		p.ppuStatus &= ^uint8(0x60)
		p.sprite0Hit = false
		p.spriteOverflow = false
	case scanlinesPerFrame:
		p.scanline = 0
		p.frameCount++
		p.oddFrame = !p.oddFrame
		p.sprite0HitThisFrame = false
		if p.frameCompleteCallback != nil {
			p.frameCompleteCallback()
		}
	}
}

// renderScanline produces the full 256-pixel row for one visible scanline,
// per spec.md §4.C: evaluate sprites, render the background tile row,
// then composite sprites behind and in front of it.
func (p *PPU) renderScanline(scanline int) {
	if p.memory == nil {
		return
	}

	p.evaluateSprites(scanline)

	backdrop := p.lookupColor(0x3F00)
	var row [256]uint32
	var bgOpaque [256]bool
	for x := range row {
		row[x] = backdrop
	}

	var bgRow [256]uint8 // paletteIndex*4 + colorIndex, 0 = transparent
	if p.backgroundEnabled {
		bgRow = p.renderBackgroundRow(scanline)
		for x := 0; x < 256; x++ {
			bgOpaque[x] = bgRow[x]&0x03 != 0
		}
	}

	if p.spritesEnabled {
		// Behind-priority sprites are drawn first so an opaque background
		// pixel can still overwrite them below. Hit detection uses the
		// background's opacity regardless of which pass draws the sprite.
		p.compositeSprites(scanline, row[:], bgOpaque[:], true)
	}

	if p.backgroundEnabled {
		for x := 0; x < 256; x++ {
			if bgOpaque[x] {
				row[x] = p.lookupColor(0x3F00 + uint16(bgRow[x]))
			}
		}
	}

	if p.spritesEnabled {
		p.compositeSprites(scanline, row[:], bgOpaque[:], false)
	}

	base := scanline * 256
	for x := 0; x < 256; x++ {
		p.frameBuffer[base+x] = row[x]
	}
}

// effectiveScroll returns the background's effective X/Y scroll in
// pixels, per spec.md §4.C step 1.
func (p *PPU) effectiveScroll() (sx, sy int) {
	fineX := uint16(p.x)
	if p.sprite0HitThisFrame {
		fineX = 0
	}
	sx = int(((p.t & 0x1F) << 3) | fineX)

	coarseY := (p.t >> 5) & 0x1F
	fineY := (p.t >> 12) & 0x07
	sy = int((coarseY << 3) | fineY)
	return sx, sy
}

// renderBackgroundRow computes paletteIndex*4+colorIndex for every pixel
// in one scanline's background row, via 33 horizontal tile slots per
// spec.md §4.C steps 2-4 (one extra slot covers the fractional tile at
// the right edge when sx isn't a multiple of 8).
func (p *PPU) renderBackgroundRow(scanline int) [256]uint8 {
	var out [256]uint8

	sx, sy := p.effectiveScroll()
	baseNametable := int((p.t >> 10) & 0x03)

	worldY := sy + scanline
	nametableYBit := baseNametable & 2
	for worldY >= 240 {
		worldY -= 240
		nametableYBit ^= 2
	}
	coarseY := worldY >> 3
	fineY := worldY & 7

	patternTableBase := uint16(0x0000)
	if p.ppuCtrl&0x10 != 0 {
		patternTableBase = 0x1000
	}

	firstSlot := sx >> 3
	fineXOffset := sx & 7

	for slot := 0; slot < 33; slot++ {
		coarseX := firstSlot + slot
		nametableXBit := baseNametable & 1
		wrappedCoarseX := coarseX
		for wrappedCoarseX >= 32 {
			wrappedCoarseX -= 32
			nametableXBit ^= 1
		}

		nametableSelect := nametableYBit | nametableXBit
		nametableAddr := 0x2000 | (uint16(nametableSelect&3) << 10) | uint16(coarseY*32+wrappedCoarseX)
		tileID := p.memory.Read(nametableAddr)

		attrAddr := 0x23C0 | (uint16(nametableSelect&3) << 10) | uint16((coarseY>>2)*8+(wrappedCoarseX>>2))
		attrByte := p.memory.Read(attrAddr)
		quadrant := (wrappedCoarseX>>1)&1 + ((coarseY>>1)&1)*2
		paletteIndex := (attrByte >> uint(quadrant*2)) & 0x03

		patternAddr := patternTableBase + uint16(tileID)*16 + uint16(fineY)
		patternLow := p.memory.Read(patternAddr)
		patternHigh := p.memory.Read(patternAddr + 8)

		for px := 0; px < 8; px++ {
			screenX := slot*8 + px - fineXOffset
			if screenX < 0 || screenX >= 256 {
				continue
			}
			bit := 7 - px
			bit0 := (patternLow >> uint(bit)) & 1
			bit1 := (patternHigh >> uint(bit)) & 1
			colorIndex := (bit1 << 1) | bit0
			if colorIndex != 0 {
				out[screenX] = colorIndex | (paletteIndex << 2)
			}
		}
	}

	return out
}

// lookupColor reads a palette RAM byte, applies the grayscale mask (low
// nibble forced to zero when PPUMASK bit 0 is set), and converts it to RGB.
func (p *PPU) lookupColor(addr uint16) uint32 {
	value := p.memory.Read(addr)
	if p.ppuMask&0x01 != 0 {
		value &= 0xF0
	}
	return NESColorToRGB(value)
}

// compositeSprites draws opaque sprite pixels from secondary OAM into row,
// restricted to the given priority (wantBehind selects priority=1 sprites
// that render behind the background; !wantBehind selects priority=0
// sprites that render in front). Lower secondary-OAM index (i.e. lower
// original OAM index) wins ties within a single pass, matching primary-OAM
// evaluation order.
func (p *PPU) compositeSprites(scanline int, row []uint32, opaque []bool, wantBehind bool) {
	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	patternBase8x8 := uint16(0x0000)
	if p.ppuCtrl&0x08 != 0 {
		patternBase8x8 = 0x1000
	}

	var drawn [256]bool

	for i := 0; i < p.spriteCount; i++ {
		slot := p.secondaryOAM[i]
		behind := slot.attr&0x20 != 0
		if behind != wantBehind {
			continue
		}

		rowInSprite := scanline - int(slot.y)
		if rowInSprite < 0 || rowInSprite >= spriteHeight {
			continue
		}

		flipY := slot.attr&0x80 != 0
		flipX := slot.attr&0x40 != 0

		patRow := rowInSprite
		if flipY {
			patRow = spriteHeight - 1 - rowInSprite
		}

		var patternAddr uint16
		if spriteHeight == 8 {
			patternAddr = patternBase8x8 + uint16(slot.tile)*16 + uint16(patRow)
		} else {
			bank := uint16(0x0000)
			if slot.tile&1 != 0 {
				bank = 0x1000
			}
			tile := slot.tile & 0xFE
			half := uint8(patRow / 8)
			rowInHalf := patRow % 8
			patternAddr = bank + uint16(tile+half)*16 + uint16(rowInHalf)
		}

		patternLow := p.memory.Read(patternAddr)
		patternHigh := p.memory.Read(patternAddr + 8)

		for px := 0; px < 8; px++ {
			screenX := int(slot.x) + px
			if screenX < 0 || screenX >= 256 || drawn[screenX] {
				continue
			}

			sampleX := px
			if flipX {
				sampleX = 7 - px
			}
			bit := 7 - sampleX
			bit0 := (patternLow >> uint(bit)) & 1
			bit1 := (patternHigh >> uint(bit)) & 1
			colorIndex := (bit1 << 1) | bit0
			if colorIndex == 0 {
				continue
			}

			paletteIndex := slot.attr & 0x03
			addr := 0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex)
			row[screenX] = p.lookupColor(addr)
			drawn[screenX] = true

			if slot.oamIndex == 0 && opaque[screenX] && !p.sprite0Hit {
				p.sprite0Hit = true
				p.sprite0HitThisFrame = true
				p.ppuStatus |= 0x40
			}
		}
	}
}

// evaluateSprites fills secondary OAM with up to the first 8 primary-OAM
// sprites in range on this scanline, per spec.md §4.C sprite step 1. A
// sprite is in range when y <= scanline <= y+height-1.
func (p *PPU) evaluateSprites(scanline int) {
	p.spriteCount = 0
	p.spriteOverflow = false

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	for index := 0; index < 64; index++ {
		base := index * 4
		y := int(p.oam[base])
		if scanline < y || scanline > y+spriteHeight-1 {
			continue
		}

		if p.spriteCount >= 8 {
			p.spriteOverflow = true
			p.ppuStatus |= 0x20
			break
		}

		p.secondaryOAM[p.spriteCount] = spriteSlot{
			y:        uint8(y),
			tile:     p.oam[base+1],
			attr:     p.oam[base+2],
			x:        p.oam[base+3],
			oamIndex: index,
		}
		p.spriteCount++
	}
}

// updateRenderingFlags updates internal rendering state based on PPUMASK.
func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

// checkNMI checks if an NMI should be triggered.
func (p *PPU) checkNMI() {
	if (p.ppuCtrl&0x80 != 0) && (p.ppuStatus&0x80 != 0) && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

// writePPUScroll handles writes to PPUSCROLL ($2005).
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

// writePPUAddr handles writes to PPUADDR ($2006).
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

// readPPUData handles reads from PPUDATA ($2007).
func (p *PPU) readPPUData() uint8 {
	var data uint8

	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}

	p.advanceVRAMAddress()
	return data
}

// writePPUData handles writes to PPUDATA ($2007).
func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceVRAMAddress()
}

func (p *PPU) advanceVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v += 1
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the current frame buffer.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the current frame count.
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// SetFrameCount sets the frame count (for synchronization).
func (p *PPU) SetFrameCount(count uint64) {
	p.frameCount = count
}

// GetScanline returns the current scanline (0-261; 261 is pre-render).
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current cycle within the scanline.
func (p *PPU) GetCycle() int {
	return p.cycle
}

// IsRenderingEnabled returns true if rendering is enabled.
func (p *PPU) IsRenderingEnabled() bool {
	return p.renderingEnabled
}

// IsVBlank returns true if currently in vertical blank.
func (p *PPU) IsVBlank() bool {
	return (p.ppuStatus & 0x80) != 0
}

// GetCycleCount returns the total PPU cycle count.
func (p *PPU) GetCycleCount() uint64 {
	return p.cycleCount
}

// NES 2C02 color palette (NTSC), indexed 0x00-0x3F.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a NES color index to RGB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0x000000
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// NESColorToRGB converts a NES color index to RGB value (PPU method).
func (p *PPU) NESColorToRGB(colorIndex uint8) uint32 {
	return NESColorToRGB(colorIndex)
}

// ClearFrameBuffer clears the frame buffer to a specific color.
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}

// RegisterState captures the PPU's CPU-visible and internal scroll/address
// registers, for save-state capture.
type RegisterState struct {
	PPUCtrl        uint8
	PPUMask        uint8
	PPUStatus      uint8
	OAMAddr        uint8
	OAMData        uint8
	PPUScroll      uint8
	PPUAddr        uint8
	PPUData        uint8
	V, T           uint16
	X              uint8
	W              bool
	Scanline       int
	Cycle          int
	FrameCount     uint64
	OddFrame       bool
	ReadBuffer     uint8
	SpriteCount    uint8
	Sprite0Hit     bool
	SpriteOverflow bool
}

// GetRegisterState returns a snapshot of the PPU's registers and scroll
// state, for save-state capture.
func (p *PPU) GetRegisterState() RegisterState {
	return RegisterState{
		PPUCtrl:        p.ppuCtrl,
		PPUMask:        p.ppuMask,
		PPUStatus:      p.ppuStatus,
		OAMAddr:        p.oamAddr,
		OAMData:        p.oamData,
		PPUScroll:      p.ppuScroll,
		PPUAddr:        p.ppuAddr,
		PPUData:        p.ppuData,
		V:              p.v,
		T:              p.t,
		X:              p.x,
		W:              p.w,
		Scanline:       p.scanline,
		Cycle:          p.cycle,
		FrameCount:     p.frameCount,
		OddFrame:       p.oddFrame,
		ReadBuffer:     p.readBuffer,
		SpriteCount:    uint8(p.spriteCount),
		Sprite0Hit:     p.sprite0Hit,
		SpriteOverflow: p.spriteOverflow,
	}
}

// RestoreRegisterState restores the PPU's registers and scroll state from a
// save-state snapshot.
func (p *PPU) RestoreRegisterState(s RegisterState) {
	p.ppuCtrl = s.PPUCtrl
	p.ppuMask = s.PPUMask
	p.ppuStatus = s.PPUStatus
	p.oamAddr = s.OAMAddr
	p.oamData = s.OAMData
	p.ppuScroll = s.PPUScroll
	p.ppuAddr = s.PPUAddr
	p.ppuData = s.PPUData
	p.v = s.V
	p.t = s.T
	p.x = s.X
	p.w = s.W
	p.scanline = s.Scanline
	p.cycle = s.Cycle
	p.frameCount = s.FrameCount
	p.oddFrame = s.OddFrame
	p.readBuffer = s.ReadBuffer
	p.spriteCount = int(s.SpriteCount)
	p.sprite0Hit = s.Sprite0Hit
	p.spriteOverflow = s.SpriteOverflow
	p.updateRenderingFlags()
}

// OAMSnapshot returns a copy of the 256-byte OAM, for save-state capture.
func (p *PPU) OAMSnapshot() []uint8 {
	out := make([]uint8, len(p.oam))
	copy(out, p.oam[:])
	return out
}

// RestoreOAM replaces OAM contents from a save-state snapshot.
func (p *PPU) RestoreOAM(data []uint8) {
	n := copy(p.oam[:], data)
	for i := n; i < len(p.oam); i++ {
		p.oam[i] = 0
	}
}
