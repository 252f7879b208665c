// Serialization and deserialization of compiled programs.
//
// Binary layout, all multi-byte values in native byte order:
//
//	[Header]
//	  Marker (1 byte): 0x01
//	  Magic (4 bytes): 0xB00BA911
//	  Version (1 byte): 0x01
//	  Pointer width (1 byte): sizeof(uint) of the writing machine
//	  Metadata length (size_t): reserved, currently zero
//
//	[Constants Section]
//	  Count (size_t)
//	  For each constant: tag byte + tag-specific payload
//
//	[Main Function]
//	  Bytecode length (size_t) + raw bytes
//
// A file whose magic reads byte-swapped was produced on a machine of
// the opposite endianness; the loader rejects it with an explicit
// "recompile" error rather than guessing.
package program

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"strconv"

	"github.com/mildew-lang/mildew/code"
	"github.com/mildew-lang/mildew/object"
)

// File format constants.
const (
	// BinaryMarker is the first byte of every bytecode file, which
	// is how source files are told apart from compiled ones.
	BinaryMarker byte = 0x01

	// MagicNumber is the file signature.
	MagicNumber uint32 = 0xB00BA911

	// FormatVersion is the current format version.
	FormatVersion byte = 0x01
)

// pointerWidth is the machine word size in bytes; part of the header
// so a 32-bit build never loads a 64-bit file.
const pointerWidth = strconv.IntSize / 8

// Constant tags.
const (
	tagUndefined byte = iota
	tagNull
	tagBoolean
	tagInteger
	tagDouble
	tagString
	tagArray
	tagFunction
	tagRegexp
)

// MainParameters is the ceremonial parameter list of every compiled
// main function; it is not serialized, the loader re-attaches it.
var MainParameters = []string{"__module__"}

// Encode serializes the program to w.
func Encode(p *Program, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := writeSize(w, uint64(len(p.Constants))); err != nil {
		return fmt.Errorf("failed to write constant count: %w", err)
	}
	for i, c := range p.Constants {
		if err := writeConstant(w, c); err != nil {
			return fmt.Errorf("failed to write constant %d: %w", i, err)
		}
	}

	if err := writeBytes(w, p.Main.Instructions); err != nil {
		return fmt.Errorf("failed to write main bytecode: %w", err)
	}
	return nil
}

// Decode deserializes a program from r, rejecting files written by a
// machine of different endianness or word size.
func Decode(r io.Reader) (*Program, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}

	count, err := readSize(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read constant count: %w", err)
	}
	constants := make([]object.Object, count)
	for i := uint64(0); i < count; i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant %d: %w", i, err)
		}
		constants[i] = c
	}

	ins, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read main bytecode: %w", err)
	}

	return &Program{
		Constants: constants,
		Main: &object.Function{
			Kind:         object.ScriptFunction,
			Name:         "main",
			Parameters:   MainParameters,
			Instructions: code.Instructions(ins),
		},
	}, nil
}

// writeHeader writes the marker, magic, version, pointer-width and
// reserved metadata-length fields.
func writeHeader(w io.Writer) error {
	hdr := []byte{BinaryMarker}
	hdr = binary.NativeEndian.AppendUint32(hdr, MagicNumber)
	hdr = append(hdr, FormatVersion, byte(pointerWidth))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	// reserved metadata
	return writeSize(w, 0)
}

// readHeader reads and validates the header.
func readHeader(r io.Reader) error {
	var marker byte
	if err := binary.Read(r, binary.NativeEndian, &marker); err != nil {
		return fmt.Errorf("failed to read marker: %w", err)
	}
	if marker != BinaryMarker {
		return fmt.Errorf("not a compiled program (marker 0x%02X)", marker)
	}

	var magic uint32
	if err := binary.Read(r, binary.NativeEndian, &magic); err != nil {
		return fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != MagicNumber {
		if bits.ReverseBytes32(magic) == MagicNumber {
			return fmt.Errorf("bytecode was compiled on a machine of the opposite byte order; recompile for this machine")
		}
		return fmt.Errorf("invalid magic number: 0x%08X", magic)
	}

	var version byte
	if err := binary.Read(r, binary.NativeEndian, &version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return fmt.Errorf("unsupported bytecode version: %d (expected %d)", version, FormatVersion)
	}

	var width byte
	if err := binary.Read(r, binary.NativeEndian, &width); err != nil {
		return fmt.Errorf("failed to read pointer width: %w", err)
	}
	if int(width) != pointerWidth {
		return fmt.Errorf("bytecode was compiled for a %d-bit machine; recompile for this machine", int(width)*8)
	}

	// Reserved metadata; skip whatever is present.
	meta, err := readSize(r)
	if err != nil {
		return fmt.Errorf("failed to read metadata length: %w", err)
	}
	if meta > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(meta)); err != nil {
			return fmt.Errorf("failed to skip metadata: %w", err)
		}
	}
	return nil
}

// writeConstant writes one tagged constant.
func writeConstant(w io.Writer, c object.Object) error {
	switch v := c.(type) {
	case *object.Undefined:
		return writeByte(w, tagUndefined)

	case *object.Null:
		return writeByte(w, tagNull)

	case *object.Boolean:
		if err := writeByte(w, tagBoolean); err != nil {
			return err
		}
		b := byte(0)
		if v.Value {
			b = 1
		}
		return writeByte(w, b)

	case *object.Integer:
		if err := writeByte(w, tagInteger); err != nil {
			return err
		}
		return binary.Write(w, binary.NativeEndian, v.Value)

	case *object.Double:
		if err := writeByte(w, tagDouble); err != nil {
			return err
		}
		return binary.Write(w, binary.NativeEndian, math.Float64bits(v.Value))

	case *object.String:
		if err := writeByte(w, tagString); err != nil {
			return err
		}
		return writeBytes(w, []byte(v.Value))

	case *object.Array:
		if err := writeByte(w, tagArray); err != nil {
			return err
		}
		if err := writeSize(w, uint64(len(v.Elements))); err != nil {
			return err
		}
		for _, e := range v.Elements {
			if err := writeConstant(w, e); err != nil {
				return err
			}
		}
		return nil

	case *object.Function:
		if v.Kind != object.ScriptFunction {
			return fmt.Errorf("cannot serialize native function %s", v.Name)
		}
		if err := writeByte(w, tagFunction); err != nil {
			return err
		}
		if err := writeSize(w, uint64(len(v.Parameters))); err != nil {
			return err
		}
		for _, name := range v.Parameters {
			if err := writeBytes(w, []byte(name)); err != nil {
				return err
			}
		}
		return writeBytes(w, v.Instructions)

	case *object.Regexp:
		if err := writeByte(w, tagRegexp); err != nil {
			return err
		}
		if err := writeBytes(w, []byte(v.Pattern)); err != nil {
			return err
		}
		return writeBytes(w, []byte(v.Flags))

	default:
		return fmt.Errorf("unsupported constant type: %s", c.Type())
	}
}

// readConstant reads one tagged constant.
func readConstant(r io.Reader) (object.Object, error) {
	tag, err := readByte(r)
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagUndefined:
		return &object.Undefined{}, nil

	case tagNull:
		return &object.Null{}, nil

	case tagBoolean:
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		return &object.Boolean{Value: b != 0}, nil

	case tagInteger:
		var v int64
		if err := binary.Read(r, binary.NativeEndian, &v); err != nil {
			return nil, err
		}
		return &object.Integer{Value: v}, nil

	case tagDouble:
		var v uint64
		if err := binary.Read(r, binary.NativeEndian, &v); err != nil {
			return nil, err
		}
		return &object.Double{Value: math.Float64frombits(v)}, nil

	case tagString:
		buf, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return &object.String{Value: string(buf)}, nil

	case tagArray:
		count, err := readSize(r)
		if err != nil {
			return nil, err
		}
		arr := &object.Array{Elements: make([]object.Object, count)}
		for i := uint64(0); i < count; i++ {
			e, err := readConstant(r)
			if err != nil {
				return nil, err
			}
			arr.Elements[i] = e
		}
		return arr, nil

	case tagFunction:
		count, err := readSize(r)
		if err != nil {
			return nil, err
		}
		params := make([]string, count)
		for i := uint64(0); i < count; i++ {
			name, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			params[i] = string(name)
		}
		ins, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return &object.Function{
			Kind:         object.ScriptFunction,
			Parameters:   params,
			Instructions: code.Instructions(ins),
		}, nil

	case tagRegexp:
		pattern, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		flags, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return &object.Regexp{Pattern: string(pattern), Flags: string(flags)}, nil

	default:
		return nil, fmt.Errorf("unknown constant tag: 0x%02X", tag)
	}
}

// writeSize writes a machine-word-sized length field.
func writeSize(w io.Writer, n uint64) error {
	if pointerWidth == 4 {
		return binary.Write(w, binary.NativeEndian, uint32(n))
	}
	return binary.Write(w, binary.NativeEndian, n)
}

// readSize reads a machine-word-sized length field.
func readSize(r io.Reader) (uint64, error) {
	if pointerWidth == 4 {
		var n uint32
		err := binary.Read(r, binary.NativeEndian, &n)
		return uint64(n), err
	}
	var n uint64
	err := binary.Read(r, binary.NativeEndian, &n)
	return n, err
}

// writeBytes writes a size-prefixed byte slice.
func writeBytes(w io.Writer, b []byte) error {
	if err := writeSize(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads a size-prefixed byte slice.
func readBytes(r io.Reader) ([]byte, error) {
	n, err := readSize(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
