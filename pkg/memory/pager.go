// Package memory implements the banked address space shared by every
// machine profile: ROM/RAM/TR-DOS selection driven by paging-port writes,
// and the contention classification the CPU core consults per memory
// access. One MemoryState handles all five paging models in pkg/machine;
// which state-machine runs is selected by the profile's PagingModel.
package memory

import "github.com/zxspectrum/toolkit/pkg/machine"

const pageSize = 0x4000 // 16 KiB

// MemoryState owns one machine's live address space and paging state.
type MemoryState struct {
	Profile machine.Profile

	rom      [][]byte // ROMBanks entries, pageSize each
	ram      [][]byte // RAMPages entries, pageSize each (48K still uses three for uniformity)
	trdosROM []byte   // nil unless the profile has a beta-disk/TR-DOS ROM

	curROMBank     int
	curRAMBank     int
	screenBank     int // 5 or 7
	pagingDisabled bool

	port1FFD          byte
	specialPagingMode bool
	specialBanks      [4]int // slot -> RAM page, valid only while specialPagingMode

	portEFF7        byte
	pentagon1024    bool
	ramInROMMode    bool // Pentagon 1024 and Scorpion both use this name in spec.md
	trdosActive     bool

	AllowROMEdit bool

	OnMemRead  func(addr uint16, val byte)
	OnMemWrite func(addr uint16, val byte)
	OnIN       func(port uint16, val byte)
	OnOUT      func(port uint16, val byte)
}

// New allocates a fresh MemoryState for the given profile with every RAM
// page zeroed and every ROM bank present but empty; callers load ROM
// contents with LoadROM.
func New(profile machine.Profile) *MemoryState {
	m := &MemoryState{Profile: profile, screenBank: 5}
	m.rom = make([][]byte, profile.ROMBanks)
	for i := range m.rom {
		m.rom[i] = make([]byte, pageSize)
	}
	ramPages := profile.RAMPages
	if profile.PagingModel == machine.PagingNone {
		// 48K always allocates three pageSize pages covering
		// 0x4000-0xFFFF; nothing outside this file observes which page is
		// which since RAM 5/2/0 are permanently mapped.
		ramPages = 3
	}
	m.ram = make([][]byte, ramPages)
	for i := range m.ram {
		m.ram[i] = make([]byte, pageSize)
	}
	if profile.HasBetaDisk || profile.HasFDC {
		m.trdosROM = make([]byte, pageSize)
	}
	return m
}

// LoadROM copies data into ROM bank n (truncated/zero-padded to pageSize).
func (m *MemoryState) LoadROM(bank int, data []byte) {
	copy(m.rom[bank], data)
}

// LoadTRDOSROM copies data into the TR-DOS/beta-disk ROM page, if present.
func (m *MemoryState) LoadTRDOSROM(data []byte) {
	if m.trdosROM != nil {
		copy(m.trdosROM, data)
	}
}

// ReadByte returns the byte currently mapped at addr.
func (m *MemoryState) ReadByte(addr uint16) byte {
	val := m.readRaw(addr)
	if m.OnMemRead != nil {
		m.OnMemRead(addr, val)
	}
	return val
}

func (m *MemoryState) readRaw(addr uint16) byte {
	slot := addr / pageSize
	off := addr % pageSize

	if m.Profile.PagingModel == machine.PagingNone {
		if slot == 0 {
			return m.romByte(off)
		}
		return m.ram[slot-1][off]
	}
	if m.specialPagingMode {
		return m.ram[m.resolveBank(int(slot))][off]
	}

	switch slot {
	case 0:
		if m.ramInROMMode {
			// RAM-in-ROM mode (Pentagon 1024 / Scorpion): page 0 reads must
			// see the same ram[0] WriteByte maps writes into, or a write
			// immediately followed by a read would observe stale ROM.
			return m.ram[0][off]
		}
		return m.romByte(off)
	case 1:
		return m.ram[5][off]
	case 2:
		return m.ram[2][off]
	default:
		bank := m.resolveBank(int(slot))
		if bank < 0 || bank >= len(m.ram) {
			return 0xFF
		}
		return m.ram[bank][off]
	}
}

func (m *MemoryState) romByte(off uint16) byte {
	if m.trdosActive && m.trdosROM != nil {
		return m.trdosROM[off]
	}
	bank := m.curROMBank
	if bank < 0 || bank >= len(m.rom) {
		bank = 0
	}
	return m.rom[bank][off]
}

// resolveBank maps a 16 KiB address slot (0-3) to a concrete RAM page
// under the current paging state. Slots 0-2 are resolved directly by
// readRaw/WriteByte for the non-special cases; this handles slot 3 (the
// switchable bank) and the +2A/+3 special all-RAM configurations, which
// remap every slot.
func (m *MemoryState) resolveBank(slot int) int {
	if m.specialPagingMode {
		return m.specialBanks[slot]
	}
	if slot == 3 {
		return m.curRAMBank
	}
	switch slot {
	case 1:
		return 5
	case 2:
		return 2
	}
	return 0
}

// WriteByte stores val at addr if the destination is RAM (or ROM with
// AllowROMEdit set); ordinary ROM writes are silently dropped.
func (m *MemoryState) WriteByte(addr uint16, val byte) {
	slot := addr / pageSize
	off := addr % pageSize

	isROM := slot == 0 && !m.specialPagingMode && !(m.Profile.PagingModel != machine.PagingNone && m.ramInROMMode)
	if isROM {
		if m.AllowROMEdit {
			bank := m.curROMBank
			if m.trdosActive && m.trdosROM != nil {
				m.trdosROM[off] = val
			} else if bank < len(m.rom) {
				m.rom[bank][off] = val
			}
		}
	} else {
		switch {
		case m.Profile.PagingModel == machine.PagingNone:
			m.ram[slot-1][off] = val
		case m.specialPagingMode:
			m.ram[m.resolveBank(int(slot))][off] = val
		case slot == 0:
			// RAM-in-ROM mode (Pentagon 1024 / Scorpion): page 0 writable
			// over the ROM window.
			m.ram[0][off] = val
		case slot == 1:
			m.ram[5][off] = val
		case slot == 2:
			m.ram[2][off] = val
		default:
			bank := m.resolveBank(int(slot))
			if bank >= 0 && bank < len(m.ram) {
				m.ram[bank][off] = val
			}
		}
	}
	if m.OnMemWrite != nil {
		m.OnMemWrite(addr, val)
	}
}

// WritePort applies a paging-relevant I/O write. Non-paging ports are the
// caller's concern; WritePort only inspects the address/data patterns each
// paging model defines and is a no-op for ports none of them claim.
func (m *MemoryState) WritePort(port uint16, val byte) {
	if m.OnOUT != nil {
		m.OnOUT(port, val)
	}
	if m.pagingDisabled {
		return
	}
	switch m.Profile.PagingModel {
	case machine.PagingNone:
		return
	case machine.Paging128K:
		m.write7FFD(port, val)
	case machine.PagingPlus2A:
		m.write7FFD(port, val)
		m.write1FFDPlus2A(port, val)
	case machine.PagingPentagon1024:
		m.write7FFDPentagon1024(port, val)
		m.writeEFF7(port, val)
	case machine.PagingScorpion:
		m.write7FFDScorpion(port, val)
		m.write1FFDScorpion(port, val)
	}
}

func (m *MemoryState) write7FFD(port uint16, val byte) {
	if port&0x8002 != 0 {
		return
	}
	m.curRAMBank = int(val & 0x07)
	if val&0x08 != 0 {
		m.screenBank = 7
	} else {
		m.screenBank = 5
	}
	if val&0x10 != 0 {
		m.curROMBank = 1
	} else {
		m.curROMBank = 0
	}
	if val&0x20 != 0 {
		m.pagingDisabled = true
	}
}

func (m *MemoryState) write1FFDPlus2A(port uint16, val byte) {
	if port&0xF002 != 0x1000 {
		return
	}
	m.port1FFD = val
	if val&0x01 != 0 {
		m.specialPagingMode = true
		config := (val >> 1) & 0x03
		switch config {
		case 0:
			m.specialBanks = [4]int{0, 1, 2, 3}
		case 1:
			m.specialBanks = [4]int{4, 5, 6, 7}
		case 2:
			m.specialBanks = [4]int{4, 5, 6, 3}
		case 3:
			m.specialBanks = [4]int{4, 7, 6, 3}
		}
	} else {
		m.specialPagingMode = false
		m.curROMBank = (int(val>>2)&1)<<1 | (m.curROMBank & 1)
	}
}

func (m *MemoryState) write7FFDPentagon1024(port uint16, val byte) {
	if port&0x8002 != 0 {
		return
	}
	bank := int(val&0x07) | (int(val>>6)&0x03)<<3
	if m.pentagon1024 {
		// 1 MB mode: bit 5 is a further bank bit (value 32) and does not
		// latch the paging-disable lock the way it does elsewhere.
		bank |= int(val>>5&1) << 5
	} else if val&0x20 != 0 {
		m.pagingDisabled = true
	}
	m.curRAMBank = bank
	if val&0x08 != 0 {
		m.screenBank = 7
	} else {
		m.screenBank = 5
	}
	m.curROMBank = boolToInt(val&0x10 != 0)
}

func (m *MemoryState) writeEFF7(port uint16, val byte) {
	if port != 0xEFF7 {
		return
	}
	m.portEFF7 = val
	m.pentagon1024 = val&0x04 == 0
	m.ramInROMMode = val&0x08 != 0
}

func (m *MemoryState) write7FFDScorpion(port uint16, val byte) {
	if port&0x8002 != 0 {
		return
	}
	bank := int(val&0x07) | (int(m.port1FFD>>4)&1)<<3
	m.curRAMBank = bank % len(m.ram)
	if val&0x08 != 0 {
		m.screenBank = 7
	} else {
		m.screenBank = 5
	}
	if m.port1FFD&0x02 != 0 {
		m.curROMBank = 2
	} else {
		m.curROMBank = boolToInt(val&0x10 != 0)
	}
	if val&0x20 != 0 {
		m.pagingDisabled = true
	}
	m.trdosActive = m.curROMBank == 3
}

func (m *MemoryState) write1FFDScorpion(port uint16, val byte) {
	if port != 0x1FFD {
		return
	}
	m.port1FFD = val
	m.ramInROMMode = val&0x01 != 0
	if val&0x02 != 0 {
		m.curROMBank = 2
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SetTRDOSActive forces the TR-DOS/beta-disk ROM overlay on or off,
// independent of the paging ports, for the 48K/128K profiles whose beta
// interface has its own enable latch outside the 7FFD/1FFD registers.
func (m *MemoryState) SetTRDOSActive(active bool) { m.trdosActive = active }

// ScreenBank returns the currently selected shadow-screen RAM page (5 or 7).
func (m *MemoryState) ScreenBank() int { return m.screenBank }

// CurRAMBank returns the RAM page mapped into the switchable 0xC000 slot.
func (m *MemoryState) CurRAMBank() int { return m.curRAMBank }

// PagingDisabled reports whether the 128K-family paging lock has latched.
func (m *MemoryState) PagingDisabled() bool { return m.pagingDisabled }

// Reset clears the live paging state back to power-on defaults without
// touching loaded ROM/RAM contents.
func (m *MemoryState) Reset() {
	m.curROMBank = 0
	m.curRAMBank = 0
	m.screenBank = 5
	m.pagingDisabled = false
	m.port1FFD = 0
	m.specialPagingMode = false
	m.portEFF7 = 0
	m.pentagon1024 = false
	m.ramInROMMode = false
	m.trdosActive = false
}
