package memory

import "github.com/zxspectrum/toolkit/pkg/machine"

// IsContended reports whether the ULA applies wait states to an access at
// addr under the current paging state. Pentagon and Scorpion profiles never
// contend; the 48K/128K family contends the low 16 KiB RAM window always,
// plus the switchable 0xC000 window whenever the mapped bank is "odd"
// (128K/+2) or >=4 (+2A/+3, including each slot of special paging).
func (m *MemoryState) IsContended(addr uint16) bool {
	if !m.Profile.Contention.MREQ {
		return false
	}
	slot := addr / pageSize
	switch m.Profile.PagingModel {
	case machine.PagingNone:
		return slot == 1 // 0x4000-0x7FFF
	case machine.Paging128K:
		if slot == 1 {
			return true
		}
		if slot == 3 {
			return m.curRAMBank%2 == 1
		}
		return false
	case machine.PagingPlus2A:
		if slot == 1 {
			return true
		}
		if m.specialPagingMode {
			return m.specialBanks[slot] >= 4
		}
		if slot == 3 {
			return m.curRAMBank >= 4
		}
		return false
	default:
		return false
	}
}

// IsIOContended reports whether an I/O port access is subject to ULA
// contention, independent of the memory contention above.
func (m *MemoryState) IsIOContended(port uint16) bool {
	return m.Profile.Contention.IO
}
