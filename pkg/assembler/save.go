package assembler

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zxspectrum/toolkit/pkg/vfs"
)

// processSaveDirective dispatches the SAVEBIN/SAVESNA/EMPTYTAP/SAVETAP/
// EMPTYTRD/SAVETRD family, each of which captures output bytes into a named
// SaveOutput for the caller to write out (WriteSaves does that against an
// FS).
func (a *Assembler) processSaveDirective(line *Line) error {
	switch line.Directive {
	case "SAVEBIN":
		return a.doSaveBin(line)
	case "SAVESNA":
		return a.doSaveSNA(line)
	case "EMPTYTAP":
		return a.doEmptyTap(line)
	case "SAVETAP":
		return a.doSaveTap(line)
	case "EMPTYTRD":
		return a.doEmptyTrd(line)
	case "SAVETRD":
		return a.doSaveTrd(line)
	}
	return fmt.Errorf("unhandled save directive %s", line.Directive)
}

func (a *Assembler) outputSlice(start, length int32) []byte {
	offset := int(start - a.outputStart)
	if offset < 0 || offset >= len(a.output) {
		return nil
	}
	end := offset + int(length)
	if end > len(a.output) {
		end = len(a.output)
	}
	return a.output[offset:end]
}

func (a *Assembler) recordSave(path string, data []byte) {
	md5sum := md5.Sum(data)
	a.saves = append(a.saves, SaveOutput{Path: path, Data: data, Computed: hex.EncodeToString(md5sum[:])})
}

func (a *Assembler) doSaveBin(line *Line) error {
	if len(line.Operands) < 1 {
		return fmt.Errorf("SAVEBIN requires a path")
	}
	path := unquote(line.Operands[0])
	start := a.outputStart
	length := int32(len(a.output))
	if len(line.Operands) > 1 {
		v, undef, err := a.evalExpr(line.Operands[1])
		if err == nil && !undef {
			start = v
		}
	}
	if len(line.Operands) > 2 {
		v, undef, err := a.evalExpr(line.Operands[2])
		if err == nil && !undef {
			length = v
		}
	}
	a.recordSave(path, append([]byte(nil), a.outputSlice(start, length)...))
	return nil
}

const snaHeaderSize = 27
const sna48KSize = 49152

// doSaveSNA writes a classic 48K .SNA snapshot: the 27-byte register header
// followed by the full 16384-65535 RAM image. Since this assembler has no
// running CPU, every register is zeroed except the stack trick used to
// reach ENT: SP is backed up by two bytes holding the entry address, so a
// bare RETN on load jumps straight to it.
func (a *Assembler) doSaveSNA(line *Line) error {
	if len(line.Operands) < 1 {
		return fmt.Errorf("SAVESNA requires a path")
	}
	path := unquote(line.Operands[0])
	entry := a.entryAddr
	if len(line.Operands) > 1 {
		v, undef, err := a.evalExpr(line.Operands[1])
		if err == nil && !undef {
			entry = v
		}
	} else if !a.haveEntry {
		entry = a.outputStart
	}

	ram := make([]byte, sna48KSize)
	src := a.output
	startOffset := int(a.outputStart) - 16384
	for i, b := range src {
		pos := startOffset + i
		if pos >= 0 && pos < len(ram) {
			ram[pos] = b
		}
	}

	sp := uint16(0xFFFE)
	sp -= 2
	ram[int(sp)-16384] = byte(entry)
	ram[int(sp)-16384+1] = byte(entry >> 8)

	header := make([]byte, snaHeaderSize)
	header[0] = 0     // I
	header[19] = 0x04 // IFF2 set, interrupts enabled on load
	header[20] = 0    // R
	putWord(header, 21, 0)
	putWord(header, 23, sp)
	header[25] = 1 // IM1
	header[26] = 7 // white border

	out := append(header, ram...)
	a.recordSave(path, out)
	return nil
}

func putWord(buf []byte, offset int, v uint16) {
	buf[offset] = byte(v)
	buf[offset+1] = byte(v >> 8)
}

// WriteSaves writes every captured SaveOutput through fs, for callers that
// don't want AssembleFile/AssembleSource to touch the filesystem directly.
func WriteSaves(fs vfs.FS, result *Result) error {
	for _, sv := range result.Saves {
		if err := fs.WriteFile(sv.Path, sv.Data); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) findSave(path string) *SaveOutput {
	for i := range a.saves {
		if a.saves[i].Path == path {
			return &a.saves[i]
		}
	}
	return nil
}

func (a *Assembler) doEmptyTap(line *Line) error {
	if len(line.Operands) < 1 {
		return fmt.Errorf("EMPTYTAP requires a path")
	}
	path := unquote(line.Operands[0])
	if a.findSave(path) == nil {
		a.recordSave(path, nil)
	}
	return nil
}

// doSaveTap appends one CODE header block + one data block to the named
// tape image: SAVETAP "path","blockname",start,length.
func (a *Assembler) doSaveTap(line *Line) error {
	if len(line.Operands) < 4 {
		return fmt.Errorf("SAVETAP requires path, name, start, length")
	}
	path := unquote(line.Operands[0])
	name := unquote(line.Operands[1])
	start, _, err := a.evalExpr(line.Operands[2])
	if err != nil {
		return err
	}
	length, _, err := a.evalExpr(line.Operands[3])
	if err != nil {
		return err
	}
	data := a.outputSlice(start, length)

	header := make([]byte, 17)
	header[0] = 3 // CODE
	copy(header[1:11], padName(name))
	putWord(header, 11, uint16(len(data)))
	putWord(header, 13, uint16(start))
	putWord(header, 15, 0x8000)

	blocks := append(tapBlock(0x00, header), tapBlock(0xFF, data)...)

	sv := a.findSave(path)
	if sv == nil {
		a.recordSave(path, blocks)
		return nil
	}
	sv.Data = append(sv.Data, blocks...)
	md5sum := md5.Sum(sv.Data)
	sv.Computed = hex.EncodeToString(md5sum[:])
	return nil
}

func padName(name string) []byte {
	out := []byte(strings.TrimRight(name, " "))
	for len(out) < 10 {
		out = append(out, ' ')
	}
	return out[:10]
}

// tapBlock wraps payload (flag byte + data) in a .TAP length-prefixed block
// with its trailing XOR checksum.
func tapBlock(flag byte, data []byte) []byte {
	body := append([]byte{flag}, data...)
	checksum := byte(0)
	for _, b := range body {
		checksum ^= b
	}
	block := append(body, checksum)
	out := make([]byte, 2+len(block))
	putWord(out, 0, uint16(len(block)))
	copy(out[2:], block)
	return out
}

const trdImageSize = 655360 // 80 tracks * 2 sides * 16 sectors * 256 bytes
const trdDirEntrySize = 16
const trdMaxFiles = 128

// trdImage is the in-progress state of one TR-DOS disk image being built
// across repeated SAVETRD calls that share a path.
type trdImage struct {
	data       []byte
	nextSector int // linear sector index, starting at 16, after track 0 (directory and disk-info sectors)
	fileCount  int
}

func newTrdImage() *trdImage {
	img := &trdImage{data: make([]byte, trdImageSize), nextSector: 16} // track 0 reserved (16 sectors)
	img.writeDiskInfo()
	return img
}

func (t *trdImage) writeDiskInfo() {
	info := t.data[8*256 : 9*256]
	info[0xE2] = 0x16      // disk type: 80 tracks, 2 sides
	info[0xE3] = 0x10      // TRDOS signature byte
	info[0xE1] = byte(t.fileCount)
	t.updateFreeSectorCount()
}

func (t *trdImage) updateFreeSectorCount() {
	info := t.data[8*256 : 9*256]
	totalSectors := 80 * 2 * 16
	free := totalSectors - t.nextSector
	putWord(info, 0xE5, uint16(free))
	info[0xE1] = byte(t.fileCount)
}

func (t *trdImage) addFile(name, ext string, startAddr, length uint16, data []byte) error {
	if t.fileCount >= trdMaxFiles {
		return fmt.Errorf("SAVETRD: directory full (%d files)", trdMaxFiles)
	}
	sectorsNeeded := (len(data) + 255) / 256
	if t.nextSector+sectorsNeeded > 80*2*16 {
		return fmt.Errorf("SAVETRD: disk image full")
	}
	entry := t.data[t.fileCount*trdDirEntrySize : (t.fileCount+1)*trdDirEntrySize]
	copy(entry[0:8], padTrdName(name))
	entry[8] = trdExtByte(ext)
	putWord(entry, 9, startAddr)
	putWord(entry, 11, length)
	entry[13] = byte(sectorsNeeded)
	entry[14] = byte(t.nextSector % 16)
	entry[15] = byte(t.nextSector / 16)

	offset := t.nextSector * 256
	copy(t.data[offset:], data)

	t.nextSector += sectorsNeeded
	t.fileCount++
	t.updateFreeSectorCount()
	return nil
}

func padTrdName(name string) []byte {
	out := []byte(strings.ToUpper(strings.TrimRight(name, " ")))
	for len(out) < 8 {
		out = append(out, ' ')
	}
	return out[:8]
}

func trdExtByte(ext string) byte {
	if ext == "" {
		return 'C' // CODE
	}
	return strings.ToUpper(ext)[0]
}

func (a *Assembler) doEmptyTrd(line *Line) error {
	if len(line.Operands) < 1 {
		return fmt.Errorf("EMPTYTRD requires a path")
	}
	path := unquote(line.Operands[0])
	a.trdImages[path] = newTrdImage()
	sv := a.findSave(path)
	if sv == nil {
		a.recordSave(path, a.trdImages[path].data)
	}
	return nil
}

// doSaveTrd appends a file into the named disk image:
// SAVETRD "path","name",start,length[,"ext"].
func (a *Assembler) doSaveTrd(line *Line) error {
	if len(line.Operands) < 4 {
		return fmt.Errorf("SAVETRD requires path, name, start, length")
	}
	path := unquote(line.Operands[0])
	name := unquote(line.Operands[1])
	start, _, err := a.evalExpr(line.Operands[2])
	if err != nil {
		return err
	}
	length, _, err := a.evalExpr(line.Operands[3])
	if err != nil {
		return err
	}
	ext := "C"
	if len(line.Operands) > 4 {
		ext = unquote(line.Operands[4])
	}
	data := a.outputSlice(start, length)

	img, ok := a.trdImages[path]
	if !ok {
		img = newTrdImage()
		a.trdImages[path] = img
	}
	if err := img.addFile(name, ext, uint16(start), uint16(length), data); err != nil {
		return err
	}

	sv := a.findSave(path)
	if sv == nil {
		a.recordSave(path, img.data)
		return nil
	}
	sv.Data = img.data
	md5sum := md5.Sum(sv.Data)
	sv.Computed = hex.EncodeToString(md5sum[:])
	return nil
}
