// Package protocol implements the command word exchanged with the disk
// controller. Every disk operation is a single 64-bit word holding an opcode,
// a sector number, a track number, and a one-bit status:
//
//	63    60 59            44 43                            12  11  10     0
//	+-------+----------------+-------------------------------+----+--------+
//	|  op   |     sector     |             track             | st | unused |
//	+-------+----------------+-------------------------------+----+--------+
//
// The status bit is 0 in requests and successful replies, and 1 in failed
// replies. Unused bits are always zero when encoding and ignored when decoding.
package protocol

import (
	"fmt"

	"github.com/fs3io/fs3/errors"
)

// Word is a packed command block as it travels on the wire.
type Word uint64

// WordSize is the size of an encoded [Word] on the wire, in bytes.
const WordSize = 8

type TrackIndex uint32
type SectorIndex uint16

const (
	opcodeShift = 60
	opcodeWidth = 4
	sectorShift = 44
	sectorWidth = 16
	trackShift  = 12
	trackWidth  = 32
	statusShift = 11
	statusWidth = 1
)

const (
	opcodeMask = Word((1<<opcodeWidth)-1) << opcodeShift
	sectorMask = Word((1<<sectorWidth)-1) << sectorShift
	trackMask  = Word((1<<trackWidth)-1) << trackShift
	statusMask = Word((1<<statusWidth)-1) << statusShift
)

// Opcode selects the operation the controller performs.
type Opcode uint8

const (
	OpMount Opcode = iota
	OpSeekTrack
	OpReadSector
	OpWriteSector
	OpUnmount
	maxOpcode = OpUnmount
)

func (op Opcode) String() string {
	switch op {
	case OpMount:
		return "MOUNT"
	case OpSeekTrack:
		return "TSEEK"
	case OpReadSector:
		return "RDSECT"
	case OpWriteSector:
		return "WRSECT"
	case OpUnmount:
		return "UMOUNT"
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// Valid reports whether the opcode is one the controller understands.
func (op Opcode) Valid() bool {
	return op <= maxOpcode
}

// CarriesPayloadOut reports whether a request with this opcode is followed by
// one sector of data.
func (op Opcode) CarriesPayloadOut() bool {
	return op == OpWriteSector
}

// CarriesPayloadIn reports whether a reply to this opcode is followed by one
// sector of data.
func (op Opcode) CarriesPayloadIn() bool {
	return op == OpReadSector
}

// Status is the one-bit outcome field of a command block.
type Status uint8

const (
	StatusOK     Status = 0
	StatusFailed Status = 1
)

// CommandBlock is the unpacked form of a [Word].
type CommandBlock struct {
	Op     Opcode
	Sector SectorIndex
	Track  TrackIndex
	Status Status
}

// NewCommand builds a request. It fails if the opcode doesn't fit the opcode
// field or isn't a known operation.
func NewCommand(op Opcode, sector SectorIndex, track TrackIndex) (CommandBlock, error) {
	if !op.Valid() {
		return CommandBlock{}, errors.NewWithMessage(
			errors.EINVAL,
			fmt.Sprintf("opcode %d not in range [0, %d]", op, maxOpcode),
		)
	}
	return CommandBlock{Op: op, Sector: sector, Track: track}, nil
}

func MountCommand() CommandBlock {
	return CommandBlock{Op: OpMount}
}

func UnmountCommand() CommandBlock {
	return CommandBlock{Op: OpUnmount}
}

func SeekCommand(track TrackIndex) CommandBlock {
	return CommandBlock{Op: OpSeekTrack, Track: track}
}

func ReadCommand(sector SectorIndex) CommandBlock {
	return CommandBlock{Op: OpReadSector, Sector: sector}
}

func WriteCommand(sector SectorIndex) CommandBlock {
	return CommandBlock{Op: OpWriteSector, Sector: sector}
}

// Failed reports whether the status bit is set.
func (cmd CommandBlock) Failed() bool {
	return cmd.Status != StatusOK
}

// Reply returns a copy of the command block with the given status, as the
// controller sends it back.
func (cmd CommandBlock) Reply(status Status) CommandBlock {
	cmd.Status = status
	return cmd
}

func (cmd CommandBlock) String() string {
	return fmt.Sprintf(
		"%s[trk=%d sec=%d ret=%d]", cmd.Op, cmd.Track, cmd.Sector, cmd.Status)
}

// Encode packs the command block into a wire word. Each field is masked to its
// width, so out-of-range opcodes or statuses never bleed into other fields.
func Encode(cmd CommandBlock) Word {
	word := (Word(cmd.Op) << opcodeShift) & opcodeMask
	word |= (Word(cmd.Sector) << sectorShift) & sectorMask
	word |= (Word(cmd.Track) << trackShift) & trackMask
	word |= (Word(cmd.Status) << statusShift) & statusMask
	return word
}

// Decode unpacks a wire word. Fields are extracted independently of each other.
func Decode(word Word) CommandBlock {
	return CommandBlock{
		Op:     Opcode((word & opcodeMask) >> opcodeShift),
		Sector: SectorIndex((word & sectorMask) >> sectorShift),
		Track:  TrackIndex((word & trackMask) >> trackShift),
		Status: Status((word & statusMask) >> statusShift),
	}
}
