// Package app provides save state functionality for the NES emulator.
package app

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gones/internal/apu"
	"gones/internal/bus"
)

// StateManager manages save states
type StateManager struct {
	saveDirectory string
	maxSlots      int
	initialized   bool
}

// SaveState represents a saved emulator state
type SaveState struct {
	// Metadata
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	ROMChecksum string    `json:"rom_checksum"`
	SlotNumber  int       `json:"slot_number"`
	Description string    `json:"description"`

	// Emulator state
	CPUState    CPUStateData `json:"cpu_state"`
	PPUState    PPUStateData `json:"ppu_state"`
	APUState    APUStateData `json:"apu_state"`
	MemoryState MemoryData   `json:"memory_state"`

	// Frame information
	FrameCount uint64 `json:"frame_count"`
	CycleCount uint64 `json:"cycle_count"`

	// Screenshot (base64 encoded)
	Screenshot string `json:"screenshot,omitempty"`
}

// CPUStateData represents CPU state for save files
type CPUStateData struct {
	PC     uint16       `json:"pc"`
	A      uint8        `json:"a"`
	X      uint8        `json:"x"`
	Y      uint8        `json:"y"`
	SP     uint8        `json:"sp"`
	Status uint8        `json:"status"`
	Cycles uint64       `json:"cycles"`
	Halted bool         `json:"halted"`
	Flags  CPUFlagsData `json:"flags"`
}

// CPUFlagsData represents CPU flags for save files
type CPUFlagsData struct {
	N bool `json:"n"`
	V bool `json:"v"`
	B bool `json:"b"`
	D bool `json:"d"`
	I bool `json:"i"`
	Z bool `json:"z"`
	C bool `json:"c"`
}

// PPUStateData represents PPU state for save files
type PPUStateData struct {
	PPUCtrl        uint8  `json:"ppu_ctrl"`
	PPUMask        uint8  `json:"ppu_mask"`
	PPUStatus      uint8  `json:"ppu_status"`
	OAMAddr        uint8  `json:"oam_addr"`
	OAMData        uint8  `json:"oam_data"`
	PPUScroll      uint8  `json:"ppu_scroll"`
	PPUAddr        uint8  `json:"ppu_addr"`
	PPUData        uint8  `json:"ppu_data"`
	V              uint16 `json:"v"`
	T              uint16 `json:"t"`
	X              uint8  `json:"x"`
	W              bool   `json:"w"`
	Scanline       int    `json:"scanline"`
	Cycle          int    `json:"cycle"`
	FrameCount     uint64 `json:"frame_count"`
	OddFrame       bool   `json:"odd_frame"`
	ReadBuffer     uint8  `json:"read_buffer"`
	SpriteCount    uint8  `json:"sprite_count"`
	Sprite0Hit     bool   `json:"sprite0_hit"`
	SpriteOverflow bool   `json:"sprite_overflow"`
}

// APUStateData represents APU state for save files
type APUStateData struct {
	Pulse1           PulseChannelData   `json:"pulse1"`
	Pulse2           PulseChannelData   `json:"pulse2"`
	Triangle         TriangleChannelData `json:"triangle"`
	Noise            NoiseChannelData   `json:"noise"`
	FrameCounter     uint16             `json:"frame_counter"`
	FrameMode        bool               `json:"frame_mode"`
	FrameIRQEnable   bool               `json:"frame_irq_enable"`
	FrameCounterStep uint8              `json:"frame_counter_step"`
	FrameIRQFlag     bool               `json:"frame_irq_flag"`
	ChannelEnable    [4]bool            `json:"channel_enable"`
	Cycles           uint64             `json:"cycles"`
	SampleRate       int                `json:"sample_rate"`
}

// PulseChannelData mirrors apu.PulseChannel for JSON round-tripping.
type PulseChannelData struct {
	DutyCycle       uint8  `json:"duty_cycle"`
	EnvelopeLoop    bool   `json:"envelope_loop"`
	EnvelopeDisable bool   `json:"envelope_disable"`
	Volume          uint8  `json:"volume"`
	SweepEnable     bool   `json:"sweep_enable"`
	SweepPeriod     uint8  `json:"sweep_period"`
	SweepNegate     bool   `json:"sweep_negate"`
	SweepShift      uint8  `json:"sweep_shift"`
	SweepReload     bool   `json:"sweep_reload"`
	SweepCounter    uint8  `json:"sweep_counter"`
	Timer           uint16 `json:"timer"`
	TimerCounter    uint16 `json:"timer_counter"`
	LengthCounter   uint8  `json:"length_counter"`
	LengthHalt      bool   `json:"length_halt"`
	EnvelopeStart   bool   `json:"envelope_start"`
	EnvelopeCounter uint8  `json:"envelope_counter"`
	EnvelopeDivider uint8  `json:"envelope_divider"`
	DutyIndex       uint8  `json:"duty_index"`
	SequencerPos    uint8  `json:"sequencer_pos"`
}

// TriangleChannelData mirrors apu.TriangleChannel for JSON round-tripping.
type TriangleChannelData struct {
	LengthCounterHalt   bool   `json:"length_counter_halt"`
	LinearCounterLoad   uint8  `json:"linear_counter_load"`
	Timer               uint16 `json:"timer"`
	TimerCounter        uint16 `json:"timer_counter"`
	LengthCounter       uint8  `json:"length_counter"`
	LinearCounter       uint8  `json:"linear_counter"`
	LinearCounterReload bool   `json:"linear_counter_reload"`
	SequencerPos        uint8  `json:"sequencer_pos"`
}

// NoiseChannelData mirrors apu.NoiseChannel for JSON round-tripping.
type NoiseChannelData struct {
	EnvelopeLoop    bool   `json:"envelope_loop"`
	EnvelopeDisable bool   `json:"envelope_disable"`
	Volume          uint8  `json:"volume"`
	Mode            bool   `json:"mode"`
	PeriodIndex     uint8  `json:"period_index"`
	TimerCounter    uint16 `json:"timer_counter"`
	LengthCounter   uint8  `json:"length_counter"`
	LengthHalt      bool   `json:"length_halt"`
	EnvelopeStart   bool   `json:"envelope_start"`
	EnvelopeCounter uint8  `json:"envelope_counter"`
	EnvelopeDivider uint8  `json:"envelope_divider"`
	ShiftRegister   uint16 `json:"shift_register"`
}

// MemoryData represents memory state for save files
type MemoryData struct {
	RAMData     []uint8 `json:"ram_data"`
	VRAMData    []uint8 `json:"vram_data"`
	OAMData     []uint8 `json:"oam_data"`
	PaletteData []uint8 `json:"palette_data"`
}

// StateSlotInfo contains information about a save state slot
type StateSlotInfo struct {
	SlotNumber  int       `json:"slot_number"`
	Used        bool      `json:"used"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

// NewStateManager creates a new state manager
func NewStateManager(saveDirectory string) *StateManager {
	manager := &StateManager{
		saveDirectory: saveDirectory,
		maxSlots:      10, // Default to 10 save slots
		initialized:   false,
	}

	if err := manager.initialize(); err != nil {
		fmt.Printf("Warning: State manager initialization failed: %v\n", err)
	}

	return manager
}

// initialize initializes the state manager
func (sm *StateManager) initialize() error {
	if err := os.MkdirAll(sm.saveDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %v", err)
	}

	sm.initialized = true
	return nil
}

// SaveState saves the current emulator state to a slot
func (sm *StateManager) SaveState(bus *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}

	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}

	if bus == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	saveState := sm.buildSaveState(bus, slot, romPath)
	saveState.Description = fmt.Sprintf("Auto-save %s", time.Now().Format("2006-01-02 15:04:05"))

	filePath := sm.getSlotFilePath(slot, romPath)

	if err := sm.saveToFile(saveState, filePath); err != nil {
		return fmt.Errorf("failed to save state: %v", err)
	}

	return nil
}

// buildSaveState captures the complete bus state into a serializable SaveState.
func (sm *StateManager) buildSaveState(bus *bus.Bus, slot int, romPath string) *SaveState {
	state := bus.CaptureState()
	vram, palette := bus.PPUMemorySnapshot()

	return &SaveState{
		Version:     "1.0",
		Timestamp:   time.Now(),
		ROMPath:     romPath,
		ROMChecksum: sm.calculateROMChecksum(romPath),
		SlotNumber:  slot,
		FrameCount:  state.FrameCount,
		CycleCount:  state.CPUCycles,
		CPUState: CPUStateData{
			PC:     state.CPU.PC,
			A:      state.CPU.A,
			X:      state.CPU.X,
			Y:      state.CPU.Y,
			SP:     state.CPU.SP,
			Status: state.CPU.Status,
			Cycles: state.CPU.Cycles,
			Halted: state.CPU.Halted,
			Flags:  statusByteToFlags(state.CPU.Status),
		},
		PPUState: PPUStateData{
			PPUCtrl:        state.PPU.Registers.PPUCtrl,
			PPUMask:        state.PPU.Registers.PPUMask,
			PPUStatus:      state.PPU.Registers.PPUStatus,
			OAMAddr:        state.PPU.Registers.OAMAddr,
			OAMData:        state.PPU.Registers.OAMData,
			PPUScroll:      state.PPU.Registers.PPUScroll,
			PPUAddr:        state.PPU.Registers.PPUAddr,
			PPUData:        state.PPU.Registers.PPUData,
			V:              state.PPU.Registers.V,
			T:              state.PPU.Registers.T,
			X:              state.PPU.Registers.X,
			W:              state.PPU.Registers.W,
			Scanline:       state.PPU.Registers.Scanline,
			Cycle:          state.PPU.Registers.Cycle,
			FrameCount:     state.PPU.Registers.FrameCount,
			OddFrame:       state.PPU.Registers.OddFrame,
			ReadBuffer:     state.PPU.Registers.ReadBuffer,
			SpriteCount:    state.PPU.Registers.SpriteCount,
			Sprite0Hit:     state.PPU.Registers.Sprite0Hit,
			SpriteOverflow: state.PPU.Registers.SpriteOverflow,
		},
		APUState: APUStateData{
			Pulse1:           pulseToData(state.APU.Pulse1),
			Pulse2:           pulseToData(state.APU.Pulse2),
			Triangle:         triangleToData(state.APU.Triangle),
			Noise:            noiseToData(state.APU.Noise),
			FrameCounter:     state.APU.FrameCounter,
			FrameMode:        state.APU.FrameMode,
			FrameIRQEnable:   state.APU.FrameIRQEnable,
			FrameCounterStep: state.APU.FrameCounterStep,
			FrameIRQFlag:     state.APU.FrameIRQFlag,
			ChannelEnable:    state.APU.ChannelEnable,
			Cycles:           state.APU.Cycles,
			SampleRate:       bus.APU.GetSampleRate(),
		},
		MemoryState: MemoryData{
			RAMData:     state.RAM,
			VRAMData:    vram,
			OAMData:     state.PPU.OAM,
			PaletteData: palette,
		},
	}
}

// LoadState loads a saved state from a slot
func (sm *StateManager) LoadState(bus *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}

	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}

	if bus == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	filePath := sm.getSlotFilePath(slot, romPath)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}

	saveState, err := sm.loadFromFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to load state: %v", err)
	}

	if err := sm.validateSaveState(saveState, romPath); err != nil {
		return fmt.Errorf("invalid save state: %v", err)
	}

	if err := sm.restoreState(bus, saveState); err != nil {
		return fmt.Errorf("failed to restore state: %v", err)
	}

	return nil
}

// saveToFile saves a state to a file
func (sm *StateManager) saveToFile(state *SaveState, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %v", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %v", err)
	}

	return nil
}

// loadFromFile loads a state from a file
func (sm *StateManager) loadFromFile(filePath string) (*SaveState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}

	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %v", err)
	}

	return &state, nil
}

// validateSaveState validates a loaded save state
func (sm *StateManager) validateSaveState(state *SaveState, currentROMPath string) error {
	if state.Version == "" {
		return fmt.Errorf("missing version information")
	}

	if state.ROMPath != currentROMPath {
		return fmt.Errorf("save state is for a different ROM")
	}

	if state.ROMChecksum != "" && state.ROMChecksum != sm.calculateROMChecksum(currentROMPath) {
		return fmt.Errorf("save state was made with different ROM contents")
	}

	return nil
}

// restoreState restores emulator state from a save state
func (sm *StateManager) restoreState(b *bus.Bus, state *SaveState) error {
	var full bus.FullState

	full.CPU.A = state.CPUState.A
	full.CPU.X = state.CPUState.X
	full.CPU.Y = state.CPUState.Y
	full.CPU.SP = state.CPUState.SP
	full.CPU.PC = state.CPUState.PC
	full.CPU.Status = state.CPUState.Status
	full.CPU.Cycles = state.CPUState.Cycles
	full.CPU.Halted = state.CPUState.Halted

	full.PPU.Registers.PPUCtrl = state.PPUState.PPUCtrl
	full.PPU.Registers.PPUMask = state.PPUState.PPUMask
	full.PPU.Registers.PPUStatus = state.PPUState.PPUStatus
	full.PPU.Registers.OAMAddr = state.PPUState.OAMAddr
	full.PPU.Registers.OAMData = state.PPUState.OAMData
	full.PPU.Registers.PPUScroll = state.PPUState.PPUScroll
	full.PPU.Registers.PPUAddr = state.PPUState.PPUAddr
	full.PPU.Registers.PPUData = state.PPUState.PPUData
	full.PPU.Registers.V = state.PPUState.V
	full.PPU.Registers.T = state.PPUState.T
	full.PPU.Registers.X = state.PPUState.X
	full.PPU.Registers.W = state.PPUState.W
	full.PPU.Registers.Scanline = state.PPUState.Scanline
	full.PPU.Registers.Cycle = state.PPUState.Cycle
	full.PPU.Registers.FrameCount = state.PPUState.FrameCount
	full.PPU.Registers.OddFrame = state.PPUState.OddFrame
	full.PPU.Registers.ReadBuffer = state.PPUState.ReadBuffer
	full.PPU.Registers.SpriteCount = state.PPUState.SpriteCount
	full.PPU.Registers.Sprite0Hit = state.PPUState.Sprite0Hit
	full.PPU.Registers.SpriteOverflow = state.PPUState.SpriteOverflow
	full.PPU.OAM = state.MemoryState.OAMData
	full.PPU.VRAM = state.MemoryState.VRAMData
	full.PPU.Palette = state.MemoryState.PaletteData

	full.APU.Pulse1 = dataToPulse(state.APUState.Pulse1)
	full.APU.Pulse2 = dataToPulse(state.APUState.Pulse2)
	full.APU.Triangle = dataToTriangle(state.APUState.Triangle)
	full.APU.Noise = dataToNoise(state.APUState.Noise)
	full.APU.FrameCounter = state.APUState.FrameCounter
	full.APU.FrameMode = state.APUState.FrameMode
	full.APU.FrameIRQEnable = state.APUState.FrameIRQEnable
	full.APU.FrameCounterStep = state.APUState.FrameCounterStep
	full.APU.FrameIRQFlag = state.APUState.FrameIRQFlag
	full.APU.ChannelEnable = state.APUState.ChannelEnable
	full.APU.Cycles = state.APUState.Cycles

	full.RAM = state.MemoryState.RAMData
	full.TotalCycles = state.CycleCount
	full.CPUCycles = state.CycleCount
	full.FrameCount = state.FrameCount

	b.RestoreState(full)
	b.SetAudioSampleRate(state.APUState.SampleRate)

	return nil
}

// getSlotFilePath generates the file path for a save slot
func (sm *StateManager) getSlotFilePath(slot int, romPath string) string {
	romName := filepath.Base(romPath)
	romNameWithoutExt := romName[:len(romName)-len(filepath.Ext(romName))]
	fileName := fmt.Sprintf("%s_slot_%d.save", romNameWithoutExt, slot)
	return filepath.Join(sm.saveDirectory, fileName)
}

// calculateROMChecksum hashes the ROM file's contents with SHA-256, so a
// save state can be validated against the exact ROM bytes it was made with.
func (sm *StateManager) calculateROMChecksum(romPath string) string {
	f, err := os.Open(romPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// GetSlotInfo returns information about all save slots
func (sm *StateManager) GetSlotInfo(romPath string) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)

	for i := 0; i < sm.maxSlots; i++ {
		slotInfo := StateSlotInfo{
			SlotNumber: i,
			Used:       false,
		}

		filePath := sm.getSlotFilePath(i, romPath)
		if stat, err := os.Stat(filePath); err == nil {
			slotInfo.Used = true
			slotInfo.FilePath = filePath
			slotInfo.FileSize = stat.Size()
			slotInfo.Timestamp = stat.ModTime()

			if state, err := sm.loadFromFile(filePath); err == nil {
				slotInfo.ROMPath = state.ROMPath
				slotInfo.Description = state.Description
				slotInfo.Timestamp = state.Timestamp
			}
		}

		slots[i] = slotInfo
	}

	return slots
}

// DeleteState deletes a save state from a slot
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}

	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d", slot)
	}

	filePath := sm.getSlotFilePath(slot, romPath)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete save state: %v", err)
	}

	return nil
}

// HasSaveState checks if a save state exists in a slot
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if slot < 0 || slot >= sm.maxSlots {
		return false
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	_, err := os.Stat(filePath)
	return err == nil
}

// GetMaxSlots returns the maximum number of save slots
func (sm *StateManager) GetMaxSlots() int {
	return sm.maxSlots
}

// SetMaxSlots sets the maximum number of save slots
func (sm *StateManager) SetMaxSlots(slots int) {
	if slots > 0 {
		sm.maxSlots = slots
	}
}

// GetSaveDirectory returns the save directory path
func (sm *StateManager) GetSaveDirectory() string {
	return sm.saveDirectory
}

// SetSaveDirectory sets the save directory path
func (sm *StateManager) SetSaveDirectory(directory string) error {
	sm.saveDirectory = directory
	return sm.initialize()
}

// ExportState exports a save state to a specific file
func (sm *StateManager) ExportState(bus *bus.Bus, filePath string, romPath string) error {
	saveState := sm.buildSaveState(bus, -1, romPath)
	saveState.Description = fmt.Sprintf("Export %s", time.Now().Format("2006-01-02 15:04:05"))

	return sm.saveToFile(saveState, filePath)
}

// ImportState imports a save state from a specific file
func (sm *StateManager) ImportState(bus *bus.Bus, filePath string, romPath string) error {
	saveState, err := sm.loadFromFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to import state: %v", err)
	}

	if err := sm.validateSaveState(saveState, romPath); err != nil {
		return fmt.Errorf("invalid imported state: %v", err)
	}

	return sm.restoreState(bus, saveState)
}

// Cleanup cleans up state manager resources
func (sm *StateManager) Cleanup() error {
	sm.initialized = false
	return nil
}

// GetStateManagerStats returns statistics about the state manager
func (sm *StateManager) GetStateManagerStats(romPath string) StateManagerStats {
	slots := sm.GetSlotInfo(romPath)

	var usedSlots int
	var totalSize int64
	for _, slot := range slots {
		if slot.Used {
			usedSlots++
			totalSize += slot.FileSize
		}
	}

	return StateManagerStats{
		MaxSlots:      sm.maxSlots,
		UsedSlots:     usedSlots,
		FreeSlots:     sm.maxSlots - usedSlots,
		TotalSize:     totalSize,
		SaveDirectory: sm.saveDirectory,
		Initialized:   sm.initialized,
	}
}

// StateManagerStats contains state manager statistics
type StateManagerStats struct {
	MaxSlots      int    `json:"max_slots"`
	UsedSlots     int    `json:"used_slots"`
	FreeSlots     int    `json:"free_slots"`
	TotalSize     int64  `json:"total_size"`
	SaveDirectory string `json:"save_directory"`
	Initialized   bool   `json:"initialized"`
}

// pulseToData converts a pulse channel's internal state into its
// JSON-serializable mirror.
func pulseToData(p apu.PulseChannel) PulseChannelData {
	return PulseChannelData{
		DutyCycle:       p.DutyCycle,
		EnvelopeLoop:    p.EnvelopeLoop,
		EnvelopeDisable: p.EnvelopeDisable,
		Volume:          p.Volume,
		SweepEnable:     p.SweepEnable,
		SweepPeriod:     p.SweepPeriod,
		SweepNegate:     p.SweepNegate,
		SweepShift:      p.SweepShift,
		SweepReload:     p.SweepReload,
		SweepCounter:    p.SweepCounter,
		Timer:           p.Timer,
		TimerCounter:    p.TimerCounter,
		LengthCounter:   p.LengthCounter,
		LengthHalt:      p.LengthHalt,
		EnvelopeStart:   p.EnvelopeStart,
		EnvelopeCounter: p.EnvelopeCounter,
		EnvelopeDivider: p.EnvelopeDivider,
		DutyIndex:       p.DutyIndex,
		SequencerPos:    p.SequencerPos,
	}
}

// dataToPulse converts a pulse channel's JSON mirror back into its internal
// representation.
func dataToPulse(d PulseChannelData) apu.PulseChannel {
	return apu.PulseChannel{
		DutyCycle:       d.DutyCycle,
		EnvelopeLoop:    d.EnvelopeLoop,
		EnvelopeDisable: d.EnvelopeDisable,
		Volume:          d.Volume,
		SweepEnable:     d.SweepEnable,
		SweepPeriod:     d.SweepPeriod,
		SweepNegate:     d.SweepNegate,
		SweepShift:      d.SweepShift,
		SweepReload:     d.SweepReload,
		SweepCounter:    d.SweepCounter,
		Timer:           d.Timer,
		TimerCounter:    d.TimerCounter,
		LengthCounter:   d.LengthCounter,
		LengthHalt:      d.LengthHalt,
		EnvelopeStart:   d.EnvelopeStart,
		EnvelopeCounter: d.EnvelopeCounter,
		EnvelopeDivider: d.EnvelopeDivider,
		DutyIndex:       d.DutyIndex,
		SequencerPos:    d.SequencerPos,
	}
}

// triangleToData converts a triangle channel's internal state into its
// JSON-serializable mirror.
func triangleToData(t apu.TriangleChannel) TriangleChannelData {
	return TriangleChannelData{
		LengthCounterHalt:   t.LengthCounterHalt,
		LinearCounterLoad:   t.LinearCounterLoad,
		Timer:               t.Timer,
		TimerCounter:        t.TimerCounter,
		LengthCounter:       t.LengthCounter,
		LinearCounter:       t.LinearCounter,
		LinearCounterReload: t.LinearCounterReload,
		SequencerPos:        t.SequencerPos,
	}
}

// dataToTriangle converts a triangle channel's JSON mirror back into its
// internal representation.
func dataToTriangle(d TriangleChannelData) apu.TriangleChannel {
	return apu.TriangleChannel{
		LengthCounterHalt:   d.LengthCounterHalt,
		LinearCounterLoad:   d.LinearCounterLoad,
		Timer:               d.Timer,
		TimerCounter:        d.TimerCounter,
		LengthCounter:       d.LengthCounter,
		LinearCounter:       d.LinearCounter,
		LinearCounterReload: d.LinearCounterReload,
		SequencerPos:        d.SequencerPos,
	}
}

// noiseToData converts a noise channel's internal state into its
// JSON-serializable mirror.
func noiseToData(n apu.NoiseChannel) NoiseChannelData {
	return NoiseChannelData{
		EnvelopeLoop:    n.EnvelopeLoop,
		EnvelopeDisable: n.EnvelopeDisable,
		Volume:          n.Volume,
		Mode:            n.Mode,
		PeriodIndex:     n.PeriodIndex,
		TimerCounter:    n.TimerCounter,
		LengthCounter:   n.LengthCounter,
		LengthHalt:      n.LengthHalt,
		EnvelopeStart:   n.EnvelopeStart,
		EnvelopeCounter: n.EnvelopeCounter,
		EnvelopeDivider: n.EnvelopeDivider,
		ShiftRegister:   n.ShiftRegister,
	}
}

// dataToNoise converts a noise channel's JSON mirror back into its internal
// representation.
func dataToNoise(d NoiseChannelData) apu.NoiseChannel {
	return apu.NoiseChannel{
		EnvelopeLoop:    d.EnvelopeLoop,
		EnvelopeDisable: d.EnvelopeDisable,
		Volume:          d.Volume,
		Mode:            d.Mode,
		PeriodIndex:     d.PeriodIndex,
		TimerCounter:    d.TimerCounter,
		LengthCounter:   d.LengthCounter,
		LengthHalt:      d.LengthHalt,
		EnvelopeStart:   d.EnvelopeStart,
		EnvelopeCounter: d.EnvelopeCounter,
		EnvelopeDivider: d.EnvelopeDivider,
		ShiftRegister:   d.ShiftRegister,
	}
}

// statusByteToFlags decomposes a 6502 status byte into individual flags,
// matching the bit layout of CPU.GetStatusByte.
func statusByteToFlags(status uint8) CPUFlagsData {
	return CPUFlagsData{
		N: status&0x80 != 0,
		V: status&0x40 != 0,
		B: status&0x10 != 0,
		D: status&0x08 != 0,
		I: status&0x04 != 0,
		Z: status&0x02 != 0,
		C: status&0x01 != 0,
	}
}
