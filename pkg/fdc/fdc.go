package fdc

import "github.com/zxspectrum/toolkit/pkg/dsk"

// Phase is one of the four states the controller's internal register
// cycles through for every command.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCommand
	PhaseExecution
	PhaseResult
)

// direction marks which side of the EXECUTION phase is active: FDC->CPU
// (reading, e.g. Read Data/Read ID) or CPU->FDC (writing, e.g. Write Data).
type direction int

const (
	dirNone direction = iota
	dirToCPU
	dirToFDC
)

// Status bits. st0EquipmentCheck, st0NotReady and st1OverRun are named but
// never set by this controller; unnamed bits stay zero.
const (
	st0AbnormalTermination = 1 << 6
	st0SeekEnd             = 1 << 5
	st0EquipmentCheck      = 1 << 4
	st0NotReady            = 1 << 3

	st1MissingAddressMark = 1 << 0
	st1NoData             = 1 << 2
	st1OverRun            = 1 << 4
	st1CRCError           = 1 << 5
	st1EndOfCylinder      = 1 << 7

	st2ControlMark = 1 << 6
	st2CRCError    = 1 << 5

	msrRQM = 1 << 7
	msrDIO = 1 << 6
	msrEXM = 1 << 5
	msrCB  = 1 << 4
)

// cmdDef describes one supported command: its command-phase length and the
// handler that runs once that many bytes have arrived.
// cmdDef's length is the TOTAL command-phase length including the opcode
// byte itself, matching how the command table is usually quoted.
type cmdDef struct {
	length  int
	handler func(c *Controller)
}

// Controller is one µPD765A instance driving up to four Drives.
type Controller struct {
	Drives [4]*Drive

	Rand func() float64 // weak-sector / CRC-error randomization source; defaults to a fixed PRNG

	phase Phase
	dir   direction

	cmd    []byte // accumulated command + parameter bytes, cmd[0] is the opcode
	result []byte
	resPos int

	dataBuf []byte
	dataPos int
	// finishResult is the 7-byte result this EXECUTION phase will post once
	// its data transfer completes (the data buffer drains on read, or the
	// caller finishes supplying bytes on write).
	finishResult []byte
	// writeTarget receives the bytes the host supplies during a Write Data
	// EXECUTION phase, split back into the matched sectors once complete.
	writeTarget []writeSpan

	st0, st1, st2 byte

	driveBusy        [4]bool
	interruptPending [4]bool
	lastSeekDrive    int
	motorOn          bool

	rngState uint32
}

// New returns a Controller with no disks inserted.
func New() *Controller {
	c := &Controller{rngState: 0x2545F491}
	for i := range c.Drives {
		c.Drives[i] = &Drive{}
	}
	return c
}

func (c *Controller) rand() float64 {
	if c.Rand != nil {
		return c.Rand()
	}
	// xorshift32, deterministic and dependency-free; good enough to scatter
	// weak-sector/CRC-error bytes without needing math/rand's global lock.
	x := c.rngState
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	c.rngState = x
	return float64(x%1000000) / 1000000
}

// SetMotor sets the motor-on flag the host's gate-array port drives
// directly; the controller itself never gates a command on it (DSK images
// have no spin-up latency to model).
func (c *Controller) SetMotor(on bool) { c.motorOn = on }

// Motor reports the last value SetMotor was called with.
func (c *Controller) Motor() bool { return c.motorOn }

// MSR returns the Main Status Register's current value.
func (c *Controller) MSR() byte {
	msr := byte(msrRQM) // instant completion: always ready for the next byte
	switch c.phase {
	case PhaseResult:
		msr |= msrDIO | msrCB
	case PhaseExecution:
		msr |= msrEXM | msrCB
		if c.dir == dirToCPU {
			msr |= msrDIO
		}
	case PhaseCommand:
		if len(c.cmd) > 0 {
			msr |= msrCB
		}
	}
	for i, busy := range c.driveBusy {
		if busy {
			msr |= 1 << uint(i)
		}
	}
	return msr
}

// WriteData writes a byte to the data register.
func (c *Controller) WriteData(b byte) {
	switch c.phase {
	case PhaseIdle, PhaseCommand:
		c.accumulateCommand(b)
	case PhaseExecution:
		if c.dir == dirToFDC {
			c.dataBuf = append(c.dataBuf, b)
			c.dataPos++
			c.advanceWriteExecution()
		}
	case PhaseResult:
		// A write during RESULT aborts the pending result and restarts
		// command collection with this byte.
		c.phase = PhaseIdle
		c.result = nil
		c.resPos = 0
		c.accumulateCommand(b)
	}
}

// ReadData reads a byte from the data register.
func (c *Controller) ReadData() byte {
	switch c.phase {
	case PhaseResult:
		if c.resPos >= len(c.result) {
			c.phase = PhaseIdle
			return 0
		}
		v := c.result[c.resPos]
		c.resPos++
		if c.resPos >= len(c.result) {
			c.phase = PhaseIdle
			c.result = nil
			c.resPos = 0
		}
		return v
	case PhaseExecution:
		if c.dir == dirToCPU {
			return c.advanceReadExecution()
		}
	}
	return 0
}

func (c *Controller) accumulateCommand(b byte) {
	c.phase = PhaseCommand
	c.cmd = append(c.cmd, b)
	def, ok := commandTable[c.cmd[0]&0x1F]
	if !ok {
		c.finishUnknownCommand()
		return
	}
	if len(c.cmd) >= def.length {
		def.handler(c)
	}
}

func (c *Controller) finishUnknownCommand() {
	c.st0 = 0x80
	c.result = []byte{c.st0}
	c.resPos = 0
	c.phase = PhaseResult
	c.cmd = nil
}

// beginResult transitions into RESULT phase carrying buf as the readout.
func (c *Controller) beginResult(buf []byte) {
	c.result = buf
	c.resPos = 0
	c.phase = PhaseResult
	c.cmd = nil
}

// beginExecution transitions into EXECUTION phase for a data-transfer
// command; dir selects which side drives the data register.
func (c *Controller) beginExecution(dir direction) {
	c.phase = PhaseExecution
	c.dir = dir
	c.cmd = nil
}

// advanceReadExecution pops the next byte of a precomputed read transfer,
// finalizing into RESULT once the buffer drains.
func (c *Controller) advanceReadExecution() byte {
	if c.dataPos >= len(c.dataBuf) {
		c.beginResult(c.finishResult)
		return 0
	}
	v := c.dataBuf[c.dataPos]
	c.dataPos++
	if c.dataPos >= len(c.dataBuf) {
		c.beginResult(c.finishResult)
	}
	return v
}

// advanceWriteExecution is called after each byte WriteData appends to
// dataBuf during a Write Data EXECUTION phase; once every matched sector's
// bytes have arrived, it writes them back into the image and finalizes.
func (c *Controller) advanceWriteExecution() {
	total := 0
	for _, span := range c.writeTarget {
		total += span.length
	}
	if c.dataPos < total {
		return
	}
	off := 0
	for _, span := range c.writeTarget {
		n := span.length
		if off+n > len(c.dataBuf) {
			n = len(c.dataBuf) - off
		}
		if n > 0 {
			copy(span.sector.Data, c.dataBuf[off:off+n])
		}
		off += n
	}
	c.writeTarget = nil
	c.beginResult(c.finishResult)
}

// writeSpan points at the live sector (inside the Image) a Write Data
// transfer's next span of bytes should land in.
type writeSpan struct {
	sector *dsk.Sector
	length int
}
