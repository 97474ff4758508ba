// Package blackbox writes fixed-size binary match logs. The format is a
// 12-byte file header followed by 24-byte little-endian checksummed records,
// so a whole match at 50Hz stays under 100KB and decoding after a loss is
// trivial. The layout matches the earlier MicroPython firmware's logs, so
// its decoder tooling reads these files and this decoder reads its.
package blackbox

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	// HeaderSize is the wire size of the file header.
	HeaderSize = 12
	// EntrySize is the wire size of one record.
	EntrySize = 24

	// Version of the log format.
	Version = 1
)

// Magic opens every log file.
var Magic = [4]byte{'B', 'T', 'B', 'L'}

// Status flag bits.
const (
	FlagArmed         uint8 = 0x01
	FlagFailsafe      uint8 = 0x02
	FlagLowBattery    uint8 = 0x04
	FlagOvertemp      uint8 = 0x08
	FlagIMUValid      uint8 = 0x10
	FlagWiFiConnected uint8 = 0x20
)

// Header is the file header, written once at creation.
type Header struct {
	Magic       [4]byte
	Version     uint16
	EntrySize   uint16
	StartTimeMS uint32
}

// Record is one log entry. Field order is the wire order; the struct encodes
// to exactly EntrySize bytes.
type Record struct {
	TimestampMS   uint32
	Left          int16 // speed percent
	Right         int16
	Weapon        int16
	BatteryCentiV uint16 // volts * 100
	CurrentMA     uint16
	AccelX        int16 // acceleration * 100; zero without an IMU fitted
	AccelY        int16
	AccelZ        int16
	Flags         uint8
	ErrorCode     uint8
	Checksum      uint16
}

// checksum sums the decoded field values, not the raw bytes, truncated to 16
// bits. Signed fields contribute their two's-complement value, matching the
// original tooling's `& 0xFFFF`.
func (r Record) checksum() uint16 {
	sum := int64(r.TimestampMS) +
		int64(r.Left) + int64(r.Right) + int64(r.Weapon) +
		int64(r.BatteryCentiV) + int64(r.CurrentMA) +
		int64(r.AccelX) + int64(r.AccelY) + int64(r.AccelZ) +
		int64(r.Flags) + int64(r.ErrorCode)
	return uint16(sum)
}

// Marshal encodes a record, filling in the checksum.
func Marshal(r Record) []byte {
	r.Checksum = r.checksum()
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &r)
	return buf.Bytes()
}

// Unmarshal decodes and verifies one record.
func Unmarshal(raw []byte) (Record, error) {
	var r Record
	if len(raw) != EntrySize {
		return r, errors.Errorf("record is %d bytes, want %d", len(raw), EntrySize)
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &r); err != nil {
		return r, err
	}
	if cs := r.checksum(); cs != r.Checksum {
		return r, errors.Errorf("checksum mismatch: got %#04x, want %#04x", r.Checksum, cs)
	}
	return r, nil
}

// Logger appends records to a file through a buffer. Append never blocks on
// the disk; Close flushes.
type Logger struct {
	f       *os.File
	w       *bufio.Writer
	entries int
}

// Create opens a new log file, truncating any previous one, and writes the
// header. startMS stamps when the recording began on the boot clock.
func Create(path string, startMS uint32) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create blackbox log %s", path)
	}
	w := bufio.NewWriter(f)
	hdr := Header{Magic: Magic, Version: Version, EntrySize: EntrySize, StartTimeMS: startMS}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write blackbox header")
	}
	return &Logger{f: f, w: w}, nil
}

// Append writes one record.
func (l *Logger) Append(r Record) error {
	if _, err := l.w.Write(Marshal(r)); err != nil {
		return err
	}
	l.entries++
	return nil
}

// Entries returns the number of records written so far.
func (l *Logger) Entries() int { return l.entries }

// Close flushes and closes the file.
func (l *Logger) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// Decode verifies the header and reads every record from r, stopping at EOF.
// A record that fails its checksum stops the decode with an error and the
// records before it.
func Decode(r io.Reader) (Header, []Record, error) {
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, nil, errors.Wrap(err, "read header")
	}
	if hdr.Magic != Magic {
		return hdr, nil, errors.Errorf("bad magic %q", hdr.Magic[:])
	}
	if hdr.EntrySize != EntrySize {
		return hdr, nil, errors.Errorf("entry size %d, want %d", hdr.EntrySize, EntrySize)
	}

	var out []Record
	buf := make([]byte, EntrySize)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return hdr, out, nil
		}
		if err != nil {
			return hdr, out, errors.Wrap(err, "short record")
		}
		rec, err := Unmarshal(buf)
		if err != nil {
			return hdr, out, err
		}
		out = append(out, rec)
	}
}
