package dsk

import "fmt"

// DiskSpec describes the CP/M/+3DOS geometry parameters either read from a
// disk's boot sector or substituted with the conventional +3DOS fallback.
type DiskSpec struct {
	ReservedTracks int
	BlockSize      int
	BlockShift     int
	DirBlocks      int
	SectorsPerTrack int
	SectorSize      int
}

var defaultSpec = DiskSpec{ReservedTracks: 1, BlockSize: 1024, BlockShift: 3, DirBlocks: 2}

// Entry is one reassembled CP/M/+3DOS directory file, merged across its
// (possibly several) 32-byte extents.
type Entry struct {
	User      int
	Name      string
	Ext       string
	Size      int
	Blocks    []int
	Plus3     bool
	Plus3Type byte
	LoadAddr  uint16
	DataLen   uint32
	Autostart uint16
}

type rawExtent struct {
	user    int
	name    string
	ext     string
	extent  int
	rc      int
	bc      int
	blocks  []int
}

// ReadSpec recovers the disk's geometry parameters from the boot sector
// (track 0, head 0, lowest sector ID), falling back to the conventional
// +3DOS defaults when the stored checksum or fields look implausible.
func ReadSpec(img *Image) DiskSpec {
	boot, ok := lowestIDSector(img, 0, 0)
	if !ok || len(boot.Data) < 16 {
		return fallbackSpec(img)
	}
	var sum byte
	for _, b := range boot.Data[:16] {
		sum += b
	}
	if sum != 0 {
		return fallbackSpec(img)
	}
	blockShift := int(boot.Data[3])
	reserved := int(boot.Data[4])
	if blockShift < 3 || blockShift > 5 || reserved < 0 || reserved > 3 {
		return fallbackSpec(img)
	}
	spec := DiskSpec{
		ReservedTracks: reserved,
		BlockShift:     blockShift,
		BlockSize:      128 << blockShift,
		DirBlocks:      int(boot.Data[5]),
	}
	spec.SectorsPerTrack, spec.SectorSize = trackGeometry(img)
	return spec
}

func fallbackSpec(img *Image) DiskSpec {
	spec := defaultSpec
	spec.SectorsPerTrack, spec.SectorSize = trackGeometry(img)
	return spec
}

func trackGeometry(img *Image) (sectorsPerTrack, sectorSize int) {
	for c := range img.Tracks {
		for h := range img.Tracks[c] {
			t := img.Tracks[c][h]
			if len(t.Sectors) > 0 {
				return len(t.Sectors), t.Sectors[0].NominalLength()
			}
		}
	}
	return 9, 512
}

func lowestIDSector(img *Image, cyl, head int) (Sector, bool) {
	if cyl >= len(img.Tracks) || head >= len(img.Tracks[cyl]) {
		return Sector{}, false
	}
	track := img.Tracks[cyl][head]
	if len(track.Sectors) == 0 {
		return Sector{}, false
	}
	best := track.Sectors[0]
	for _, s := range track.Sectors[1:] {
		if s.ID < best.ID {
			best = s
		}
	}
	return best, true
}

// sectorsPerBlock returns how many physical sectors make up one allocation
// block under spec.
func sectorsPerBlock(spec DiskSpec) int {
	if spec.SectorSize == 0 {
		return 1
	}
	n := spec.BlockSize / spec.SectorSize
	if n < 1 {
		n = 1
	}
	return n
}

// ReadDirectory walks the directory region and reassembles every file's
// extents into a flat Entry list.
func ReadDirectory(img *Image, spec DiskSpec) ([]Entry, error) {
	dirBytes := spec.DirBlocks * spec.BlockSize
	raw, err := readLinearFromTrack(img, spec, spec.ReservedTracks, dirBytes)
	if err != nil {
		return nil, fmt.Errorf("dsk: reading directory: %w", err)
	}

	order := make([]string, 0)
	byKey := make(map[string]*rawExtent)
	for off := 0; off+32 <= len(raw); off += 32 {
		rec := raw[off : off+32]
		user := int(rec[0])
		if user == 0xE5 || user > 15 {
			continue
		}
		name := trimPadded(rec[1:9])
		ext := trimPadded(rec[9:12])
		extentLow := int(rec[12])
		extentHigh := int(rec[14])
		extent := extentHigh*32 + extentLow
		rc := int(rec[13])
		bc := int(rec[15])
		blocks := make([]int, 0, 16)
		for _, b := range rec[16:32] {
			if b != 0 {
				blocks = append(blocks, int(b))
			}
		}
		key := fmt.Sprintf("%d:%s:%s", user, name, ext)
		ex, ok := byKey[key]
		if !ok {
			ex = &rawExtent{user: user, name: name, ext: ext, extent: extent, bc: 0}
			byKey[key] = ex
			order = append(order, key)
		}
		if extent > ex.extent || len(ex.blocks) == 0 {
			ex.extent = extent
			ex.rc = rc
			ex.bc = bc
		}
		ex.blocks = append(ex.blocks, blocks...)
	}

	entries := make([]Entry, 0, len(order))
	for _, key := range order {
		ex := byKey[key]
		entries = append(entries, Entry{
			User: ex.user, Name: ex.name, Ext: ex.ext,
			Size: computeSize(ex.extent, ex.rc, ex.bc), Blocks: ex.blocks,
		})
	}

	for i := range entries {
		if err := applyPlus3DOSHeader(img, spec, &entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func computeSize(maxExtent, rc, bc int) int {
	size := maxExtent*16384 + rc*128
	if bc > 0 {
		size -= 128 - bc
	}
	if size < 0 {
		size = 0
	}
	return size
}

func trimPadded(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}

// applyPlus3DOSHeader inspects the file's first sector; if it carries a
// PLUS3DOS header, the header's declared length overrides the directory's
// CP/M size and the +3DOS metadata fields are populated.
func applyPlus3DOSHeader(img *Image, spec DiskSpec, e *Entry) error {
	if len(e.Blocks) == 0 {
		return nil
	}
	spb := sectorsPerBlock(spec)
	first, err := readSectorsForBlock(img, spec, e.Blocks[0], spb)
	if err != nil || len(first) < 128 {
		return nil
	}
	if string(first[:8]) != "PLUS3DOS" || first[8] != 0x1A {
		return nil
	}
	length := uint32(first[11]) | uint32(first[12])<<8 | uint32(first[13])<<16 | uint32(first[14])<<24
	e.Plus3 = true
	e.Plus3Type = first[15]
	e.LoadAddr = uint16(first[16]) | uint16(first[17])<<8
	e.DataLen = uint32(first[18]) | uint32(first[19])<<8
	e.Autostart = uint16(first[20]) | uint16(first[21])<<8
	if length >= 128 {
		e.Size = int(length) - 128
	}
	return nil
}

// readSectorsForBlock reads the spb physical sectors making up allocation
// block n, returned concatenated, sectors ordered by ID.
func readSectorsForBlock(img *Image, spec DiskSpec, block, spb int) ([]byte, error) {
	absSector := block * spb
	return readLinearFromTrack(img, spec, spec.ReservedTracks, spb*spec.SectorSize, withStartSector(absSector))
}

type readOpt struct{ startSector int }

func withStartSector(n int) func(*readOpt) {
	return func(o *readOpt) { o.startSector = n }
}

// readLinearFromTrack reads n bytes starting at the given logical sector
// offset (in units of spec.SectorsPerTrack), walking tracks sequentially
// from startTrack on head 0 only, sectors ordered by ascending ID.
func readLinearFromTrack(img *Image, spec DiskSpec, startTrack, n int, opts ...func(*readOpt)) ([]byte, error) {
	o := readOpt{}
	for _, f := range opts {
		f(&o)
	}
	spt := spec.SectorsPerTrack
	if spt == 0 {
		spt = 1
	}
	skip := o.startSector
	out := make([]byte, 0, n)
	track := startTrack + skip/spt
	sectorIdx := skip % spt
	for len(out) < n {
		if track >= len(img.Tracks) {
			break
		}
		sectors := orderedByID(img.Tracks[track][0].Sectors)
		for sectorIdx < len(sectors) && len(out) < n {
			out = append(out, sectors[sectorIdx].Data...)
			sectorIdx++
		}
		sectorIdx = 0
		track++
	}
	if len(out) < n {
		return nil, fmt.Errorf("dsk: ran off the end of the image while reading %d bytes", n)
	}
	return out[:n], nil
}

func orderedByID(sectors []Sector) []Sector {
	out := append([]Sector(nil), sectors...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ReadFile returns a file's data, extents concatenated in ascending extent
// order and truncated to the entry's known size.
func ReadFile(img *Image, spec DiskSpec, e Entry) ([]byte, error) {
	spb := sectorsPerBlock(spec)
	buf := make([]byte, 0, len(e.Blocks)*spec.BlockSize)
	for _, block := range e.Blocks {
		data, err := readSectorsForBlock(img, spec, block, spb)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}
	if len(buf) > e.Size {
		buf = buf[:e.Size]
	}
	return buf, nil
}
