package fdc

import "github.com/zxspectrum/toolkit/pkg/dsk"

var commandTable = map[byte]cmdDef{
	0x02: {9, cmdReadTrack},
	0x03: {3, cmdSpecify},
	0x04: {2, cmdSenseDriveStatus},
	0x05: {9, cmdWriteData},
	0x06: {9, cmdReadData},
	0x07: {2, cmdRecalibrate},
	0x08: {1, cmdSenseInterruptStatus},
	0x09: {9, cmdWriteDeletedData},
	0x0A: {2, cmdReadID},
	0x0C: {9, cmdReadDeletedData},
	0x0D: {6, cmdFormatTrack},
	0x0F: {3, cmdSeek},
	0x11: {9, cmdScan},
	0x19: {9, cmdScan},
	0x1D: {9, cmdScan},
}

func driveHeadOf(cmd []byte) (drive, head int) {
	drive = int(cmd[1] & 0x03)
	head = int((cmd[1] >> 2) & 0x01)
	return
}

func cmdSpecify(c *Controller) {
	// SPECIFY's step-rate/head-load/DMA-mode timing parameters have no
	// observable effect here: every transfer completes instantly, and the
	// command has no RESULT phase of its own.
	c.phase = PhaseIdle
	c.cmd = nil
}

func cmdSenseDriveStatus(c *Controller) {
	drive, head := driveHeadOf(c.cmd)
	d := c.Drives[drive]
	st3 := byte(drive) | byte(head)<<2
	if d.TwoSide {
		st3 |= 1 << 3
	}
	if d.Present {
		st3 |= 1 << 5 // ready
	} else {
		st3 |= 1 << 6 // write-protect (no disk inserted)
	}
	if d.Track == 0 {
		st3 |= 1 << 4
	}
	c.beginResult([]byte{st3})
}

func cmdRecalibrate(c *Controller) {
	drive := int(c.cmd[1] & 0x03)
	c.Drives[drive].Seek(0)
	c.lastSeekDrive = drive
	c.interruptPending[drive] = true
	c.driveBusy[drive] = false
	c.phase = PhaseIdle
	c.cmd = nil
}

func cmdSeek(c *Controller) {
	drive := int(c.cmd[1] & 0x03)
	target := int(c.cmd[2])
	c.Drives[drive].Seek(target)
	c.lastSeekDrive = drive
	c.interruptPending[drive] = true
	c.driveBusy[drive] = false
	c.phase = PhaseIdle
	c.cmd = nil
}

func cmdSenseInterruptStatus(c *Controller) {
	drive := c.lastSeekDrive
	st0 := byte(drive)
	if c.interruptPending[drive] {
		st0 |= st0SeekEnd
		c.interruptPending[drive] = false
	} else {
		st0 |= 0x80 // no interrupt outstanding: invalid command response
	}
	c.beginResult([]byte{st0, byte(c.Drives[drive].Track)})
}

func cmdReadID(c *Controller) {
	drive, head := driveHeadOf(c.cmd)
	track, ok := c.Drives[drive].currentTrack(head)
	if !ok || len(track.Sectors) == 0 {
		c.beginResult([]byte{st0AbnormalTermination | byte(drive), st1MissingAddressMark, 0, 0, 0, 0, 0})
		return
	}
	s := track.Sectors[0]
	c.beginResult([]byte{byte(drive), 0, 0, s.Cyl, s.Head, s.ID, s.SizeCode})
}

func cmdReadTrack(c *Controller) {
	drive, head := driveHeadOf(c.cmd)
	eot := c.cmd[6]
	track, ok := c.Drives[drive].currentTrack(head)
	if !ok {
		c.beginResult([]byte{st0AbnormalTermination | byte(drive), st1MissingAddressMark, 0, 0, 0, 0, 0})
		return
	}
	var buf []byte
	var last dsk.Sector
	count := 0
	for _, s := range track.Sectors {
		if byte(count+1) > eot {
			break
		}
		out := append([]byte(nil), s.Data...)
		c.applyReadQuirks(s, out)
		buf = append(buf, out...)
		last = s
		count++
	}
	c.finishResult = []byte{byte(drive), 0, 0, last.Cyl, last.Head, last.ID + 1, last.SizeCode}
	c.dataBuf = buf
	c.dataPos = 0
	c.beginExecution(dirToCPU)
}

func cmdFormatTrack(c *Controller) {
	drive, head := driveHeadOf(c.cmd)
	track, ok := c.Drives[drive].currentTrack(head)
	if ok {
		n := c.cmd[2]
		sectorCount := int(c.cmd[3])
		fill := c.cmd[5]
		nominal := 128 << n
		newSectors := make([]dsk.Sector, 0, sectorCount)
		for i := 0; i < sectorCount && i < len(track.Sectors); i++ {
			s := track.Sectors[i]
			s.SizeCode = n
			s.ST1, s.ST2 = 0, 0
			s.Data = make([]byte, nominal)
			for j := range s.Data {
				s.Data[j] = fill
			}
			s.WeakMap = nil
			newSectors = append(newSectors, s)
		}
		c.Drives[drive].Image.Tracks[c.Drives[drive].Track][head].Sectors = newSectors
	}
	c.st0 = byte(drive)
	c.beginResult([]byte{c.st0, 0, 0, 0, 0, 0, 0})
}

func cmdScan(c *Controller) {
	drive := int(c.cmd[1] & 0x03)
	// Scan commands are accepted but this controller never reports a match.
	c.beginResult([]byte{byte(drive), 1 << 2, 1 << 3, c.cmd[2], byte((c.cmd[1] >> 2) & 1), c.cmd[4], c.cmd[5]})
}

func cmdReadData(c *Controller)         { c.startDataTransfer(false, false) }
func cmdReadDeletedData(c *Controller)  { c.startDataTransfer(false, true) }
func cmdWriteData(c *Controller)        { c.startDataTransfer(true, false) }
func cmdWriteDeletedData(c *Controller) { c.startDataTransfer(true, true) }

// startDataTransfer implements the shared Read/Write Data (and their
// deleted-mark variants) multi-sector scan described by spec.md: walk
// sector IDs R..max(R,EOT), honoring SK against the deleted/normal mark
// mismatch, and stop early on a missing sector, an unskipped mismatch or a
// CRC-error sector.
func (c *Controller) startDataTransfer(write, deletedMode bool) {
	skip := c.cmd[0]&0x20 != 0
	drive, head := driveHeadOf(c.cmd)
	r := c.cmd[4]
	eot := c.cmd[6]
	sizeCode := c.cmd[5]

	d := c.Drives[drive]
	track, ok := d.currentTrack(head)
	if !ok {
		c.beginResult([]byte{st0AbnormalTermination | byte(drive), st1MissingAddressMark, 0, 0, byte(head), r, sizeCode})
		return
	}

	last := r
	if eot > last {
		last = eot
	}

	st1, st2 := byte(0), byte(0)
	var resultC, resultH, resultR, resultN byte = byte(d.Track), byte(head), r, sizeCode
	endOfCylinder := true
	crcOccurred := false
	var buf []byte
	var writeSpans []writeSpan

	for sid := r; sid <= last; sid++ {
		idx := findSectorByID(track, sid)
		if idx < 0 {
			st1 |= st1NoData
			resultR = sid
			endOfCylinder = false
			break
		}
		sec := &track.Sectors[idx]
		hasDeletedMark := sec.ST2&st2ControlMark != 0
		if hasDeletedMark != deletedMode {
			if skip {
				continue
			}
			st2 |= st2ControlMark
			if !write {
				out := append([]byte(nil), sec.Data...)
				c.applyReadQuirks(*sec, out)
				buf = append(buf, out...)
			} else {
				writeSpans = append(writeSpans, writeSpan{sector: sec, length: len(sec.Data)})
			}
			resultC, resultH, resultR, resultN = sec.Cyl, sec.Head, sec.ID+1, sec.SizeCode
			endOfCylinder = false
			break
		}
		if sec.ST1&st1CRCError != 0 {
			st1 |= st1CRCError
			st2 |= st2CRCError
			crcOccurred = true
		}
		if !write {
			out := append([]byte(nil), sec.Data...)
			c.applyReadQuirks(*sec, out)
			buf = append(buf, out...)
		} else {
			writeSpans = append(writeSpans, writeSpan{sector: sec, length: len(sec.Data)})
		}
		resultC, resultH, resultR, resultN = sec.Cyl, sec.Head, sec.ID+1, sec.SizeCode
		if crcOccurred {
			// A CRC error truncates the scan the same way a control-mark
			// mismatch does: the errored sector's data is still delivered,
			// but no further sectors in the multi-sector run are attempted.
			endOfCylinder = false
			break
		}
	}

	if endOfCylinder && !crcOccurred {
		st1 |= st1EndOfCylinder
	}
	st0 := st0AbnormalTermination | byte(drive)
	c.finishResult = []byte{st0, st1, st2, resultC, resultH, resultR, resultN}

	if write {
		c.writeTarget = writeSpans
		c.dataBuf = nil
		c.dataPos = 0
		c.beginExecution(dirToFDC)
	} else {
		c.dataBuf = buf
		c.dataPos = 0
		c.beginExecution(dirToCPU)
		if len(buf) == 0 {
			// Nothing matched (e.g. immediate No Data): post the result
			// directly rather than waiting on a drain that will never
			// happen.
			c.beginResult(c.finishResult)
		}
	}
}

func findSectorByID(track dsk.Track, id byte) int {
	for i, s := range track.Sectors {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// applyReadQuirks mutates out (already a copy of sec.Data) in place to
// simulate weak-sector instability and CRC-error byte corruption on read.
func (c *Controller) applyReadQuirks(sec dsk.Sector, out []byte) {
	if sec.WeakMap != nil {
		for i, weak := range sec.WeakMap {
			if weak && i < len(out) && c.rand() < 0.5 {
				out[i] = byte(c.rand() * 256)
			}
		}
	}
	if sec.ST1&st1CRCError != 0 {
		nominal := sec.NominalLength()
		storedLen := len(sec.Data)
		if nominal <= storedLen {
			start := storedLen
			if start > 256 {
				start = 256
			}
			for i := start; i < len(out); i++ {
				out[i] = byte(c.rand() * 256)
			}
		}
	}
}
