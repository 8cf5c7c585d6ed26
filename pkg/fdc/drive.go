// Package fdc implements a µPD765A floppy disk controller state machine
// operating on pkg/dsk images: the three-phase command/execution/result
// protocol, ST0-ST3 status registers, and the Read/Write Data multi-sector
// scan semantics real +3/Pentagon/Scorpion software drives directly.
package fdc

import "github.com/zxspectrum/toolkit/pkg/dsk"

// Drive is one physical drive slot: the disk image currently inserted (if
// any) and the head's current track position.
type Drive struct {
	Image        *dsk.Image
	Track        int
	Present      bool // disk inserted
	WriteProtect bool
	TwoSide      bool
}

// Seek moves the head directly to track, clamping to the image's track
// count. Real seeks take time the caller is expected to simulate; the FDC
// itself just tracks the resulting head position and an interrupt-pending
// flag (see cmdRecalibrate and cmdSeek in commands.go).
func (d *Drive) Seek(track int) {
	if d.Image != nil && track >= len(d.Image.Tracks) {
		track = len(d.Image.Tracks) - 1
	}
	if track < 0 {
		track = 0
	}
	d.Track = track
}

func (d *Drive) currentTrack(head int) (dsk.Track, bool) {
	if d.Image == nil {
		return dsk.Track{}, false
	}
	if d.Track < 0 || d.Track >= len(d.Image.Tracks) {
		return dsk.Track{}, false
	}
	heads := d.Image.Tracks[d.Track]
	if head < 0 || head >= len(heads) {
		return dsk.Track{}, false
	}
	return heads[head], true
}
