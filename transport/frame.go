// Package transport moves command blocks between the driver and a disk
// controller over TCP.
//
// A frame is one command word in network byte order, optionally followed by
// exactly one sector of data. WriteSector requests and ReadSector replies carry
// data; everything else is a bare word. Whether data follows is decided by the
// opcode of the request, so a failed ReadSector reply still carries a sector.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fs3io/fs3/errors"
	"github.com/fs3io/fs3/protocol"
	"github.com/noxer/bytewriter"
)

// FrameSize gives the size of a frame in bytes.
func FrameSize(withPayload bool, bytesPerSector uint) int {
	if withPayload {
		return protocol.WordSize + int(bytesPerSector)
	}
	return protocol.WordSize
}

// EncodeFrame lays out `cmd` and, if not nil, `payload` in a single buffer.
func EncodeFrame(cmd protocol.CommandBlock, payload []byte) ([]byte, error) {
	frame := make([]byte, protocol.WordSize+len(payload))
	writer := bytewriter.New(frame)

	err := binary.Write(writer, binary.BigEndian, uint64(protocol.Encode(cmd)))
	if err != nil {
		return nil, errors.NewFromError(errors.EIO, err)
	}
	if payload != nil {
		if _, err = writer.Write(payload); err != nil {
			return nil, errors.NewFromError(errors.EIO, err)
		}
	}
	return frame, nil
}

// WriteFrame sends `cmd` followed by `payload`, if not nil, as one write.
func WriteFrame(w io.Writer, cmd protocol.CommandBlock, payload []byte) error {
	frame, err := EncodeFrame(cmd, payload)
	if err != nil {
		return err
	}

	n, err := w.Write(frame)
	if err != nil {
		return errors.NewFromError(errors.EIO, err)
	}
	if n != len(frame) {
		return errors.NewWithMessage(
			errors.EIO,
			fmt.Sprintf("short write of %s: %d of %d bytes", cmd.Op, n, len(frame)),
		)
	}
	return nil
}

// ReadCommand reads one command word.
func ReadCommand(r io.Reader) (protocol.CommandBlock, error) {
	var raw [protocol.WordSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return protocol.CommandBlock{}, errors.NewFromError(errors.EIO, err)
	}
	return protocol.Decode(protocol.Word(binary.BigEndian.Uint64(raw[:]))), nil
}

// ReadPayload fills `payload` completely from `r`.
func ReadPayload(r io.Reader, payload []byte) error {
	if _, err := io.ReadFull(r, payload); err != nil {
		return errors.NewFromError(errors.EIO, err)
	}
	return nil
}
