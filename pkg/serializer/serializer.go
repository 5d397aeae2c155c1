package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"reflect"

	"soltick/pkg/errors"
)

// Serialize accepts an arbitrary value or pointer and returns its []byte representation.
// Integers are written little-endian at their natural width, byte arrays raw, structs
// field by field with no padding. Slices and strings carry a compact length prefix.
func Serialize(v any) []byte {
	val := reflect.ValueOf(v)

	if val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}

	buf := bytes.NewBuffer(make([]byte, 0, 256))
	serializeValue(val, buf)

	return buf.Bytes()
}

// Deserialize decodes data into target, which must be a non-nil pointer. Truncated
// input, leftover bytes and out-of-range tags fail with errors.ErrDecode.
func Deserialize(data []byte, target any) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return errors.Errorf(errors.ErrDecode, "deserialize target must be a non-nil pointer")
	}

	buf := bytes.NewBuffer(data)
	if err := deserializeValue(val.Elem(), buf); err != nil {
		return errors.Wrap(errors.ErrDecode, err)
	}

	if buf.Len() > 0 {
		return errors.Errorf(errors.ErrDecode, "extra %d bytes left after deserialization", buf.Len())
	}

	return nil
}

// Size returns the encoded length of v.
func Size(v any) int {
	return len(Serialize(v))
}

// serializeValue writes value v to buf
func serializeValue(v reflect.Value, buf *bytes.Buffer) {
	typ := v.Type()

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			buf.WriteByte(0)
			return
		}
		buf.WriteByte(1)
		serializeValue(v.Elem(), buf)
		return

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			serializeValue(v.Field(i), buf)
		}
		return

	case reflect.Array, reflect.Slice:
		serializeSlice(v, buf)
		return

	case reflect.String:
		buf.Write(EncodeGeneralNatural(uint64(v.Len())))
		buf.WriteString(v.String())
		return

	case reflect.Bool:
		if v.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l := int(typ.Size())
		buf.Write(EncodeLittleEndian(l, uint64(v.Int())))
		return

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		l := int(typ.Size())
		buf.Write(EncodeLittleEndian(l, v.Uint()))
		return

	case reflect.Float64:
		buf.Write(EncodeLittleEndian(8, math.Float64bits(v.Float())))
		return

	default:
		panic(fmt.Sprintf("unsupported kind: %s", v.Kind()))
	}
}

// deserializeValue is the recursive helper that reads from buf into value v
func deserializeValue(v reflect.Value, buf *bytes.Buffer) error {
	vType := v.Type()
	vKind := v.Kind()

	switch vKind {
	case reflect.Ptr:
		b, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read pointer tag: %w", err)
		}

		switch b {
		case 0:
			v.Set(reflect.Zero(vType))
			return nil
		case 1:
		default:
			return fmt.Errorf("invalid pointer tag %d", b)
		}

		if v.IsNil() {
			v.Set(reflect.New(vType.Elem()))
		}

		return deserializeValue(v.Elem(), buf)

	case reflect.Struct:
		numField := v.NumField()
		for i := 0; i < numField; i++ {
			if err := deserializeValue(v.Field(i), buf); err != nil {
				return fmt.Errorf("failed to deserialize field %s: %w", vType.Field(i).Name, err)
			}
		}
		return nil

	case reflect.Array, reflect.Slice:
		return deserializeSlice(v, buf)

	case reflect.String:
		length, err := readLength(buf)
		if err != nil {
			return err
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(buf, data); err != nil {
			return fmt.Errorf("failed to read string data: %w", err)
		}
		v.SetString(string(data))
		return nil

	case reflect.Bool:
		b, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read bool: %w", err)
		}
		if b > 1 {
			return fmt.Errorf("invalid bool value %d", b)
		}
		v.SetBool(b == 1)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		l := int(vType.Size())

		var bytes [8]byte
		if _, err := io.ReadFull(buf, bytes[:l]); err != nil {
			return fmt.Errorf("failed to read integer bytes: %w", err)
		}

		v.SetInt(UnsignedToSigned(l, DecodeLittleEndian(bytes[:l])))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		l := int(vType.Size())

		var bytes [8]byte
		if _, err := io.ReadFull(buf, bytes[:l]); err != nil {
			return fmt.Errorf("failed to read unsigned integer bytes: %w", err)
		}

		v.SetUint(DecodeLittleEndian(bytes[:l]))
		return nil

	case reflect.Float64:
		var bytes [8]byte
		if _, err := io.ReadFull(buf, bytes[:]); err != nil {
			return fmt.Errorf("failed to read float bytes: %w", err)
		}
		v.SetFloat(math.Float64frombits(binary.LittleEndian.Uint64(bytes[:])))
		return nil

	default:
		return fmt.Errorf("unsupported kind for deserialization: %s", vKind)
	}
}

// serializeSlice handles array/slice serialization.
// For slices (but not arrays), it encodes the length first.
func serializeSlice(v reflect.Value, buf *bytes.Buffer) {
	vLen := v.Len()

	if v.Kind() == reflect.Slice {
		buf.Write(EncodeGeneralNatural(uint64(vLen)))
	}

	if v.Type().Elem().Kind() == reflect.Uint8 {
		if v.Kind() == reflect.Slice {
			buf.Write(v.Bytes())
			return
		}
		if v.CanAddr() {
			buf.Write(v.Slice(0, vLen).Bytes())
			return
		}
		for i := 0; i < vLen; i++ {
			buf.WriteByte(byte(v.Index(i).Uint()))
		}
		return
	}

	for i := 0; i < vLen; i++ {
		serializeValue(v.Index(i), buf)
	}
}

// deserializeSlice is a helper to deserialize arrays and slices
func deserializeSlice(v reflect.Value, buf *bytes.Buffer) error {
	vKind := v.Kind()
	vType := v.Type()

	length := v.Len()

	if vKind == reflect.Slice {
		decodedLength, err := readLength(buf)
		if err != nil {
			return err
		}
		length = decodedLength
		v.Set(reflect.MakeSlice(vType, length, length))
	}

	if vType.Elem().Kind() == reflect.Uint8 {
		data := make([]byte, length)
		if _, err := io.ReadFull(buf, data); err != nil {
			return fmt.Errorf("failed to read byte data: %w", err)
		}
		reflect.Copy(v, reflect.ValueOf(data))
		return nil
	}

	for i := 0; i < length; i++ {
		if err := deserializeValue(v.Index(i), buf); err != nil {
			return fmt.Errorf("failed to deserialize element %d: %w", i, err)
		}
	}

	return nil
}

// readLength consumes a compact length prefix. Lengths larger than the remaining
// input are rejected up front so corrupt prefixes cannot trigger huge allocations.
func readLength(buf *bytes.Buffer) (int, error) {
	length, n, ok := DecodeGeneralNatural(buf.Bytes())
	if !ok {
		return 0, fmt.Errorf("failed to decode length prefix")
	}
	buf.Next(n)
	if length > uint64(buf.Len()) {
		return 0, fmt.Errorf("length prefix %d exceeds remaining %d bytes", length, buf.Len())
	}
	return int(length), nil
}

// EncodeGeneralNatural encodes a uint64 length value using the compact encoding format.
// It follows three cases:
//  1. x == 0: output a single 0x00 octet.
//  2. x fits in a computed header + remainder format.
//  3. Otherwise, output 0xFF followed by x as 8 little-endian octets.
func EncodeGeneralNatural(x uint64) []byte {
	var result []byte
	if x == 0 {
		return []byte{0x00}
	}

	// l = floor(log2(x)/7)
	l := uint((bits.Len64(x) - 1) / 7)

	if l < 8 {
		// Header: 2^8 - 2^(8-l) + ⌊x/(2^(8l))⌋
		header := (1 << 8) - (1 << (8 - l)) + (x >> (8 * l))
		result = append(result, byte(header))

		if l > 0 {
			remainder := x & ((uint64(1) << (8 * l)) - 1)
			result = append(result, EncodeLittleEndian(int(l), remainder)...)
		}
	} else {
		result = append(result, 0xFF)
		result = append(result, EncodeLittleEndian(8, x)...)
	}
	return result
}

func DecodeGeneralNatural(p []byte) (x uint64, n int, ok bool) {
	if len(p) == 0 {
		return 0, 0, false
	}

	header := p[0]
	if header == 0x00 {
		return 0, 1, true
	}
	if header == 0xFF {
		if len(p) < 9 {
			return 0, 0, false
		}
		return binary.LittleEndian.Uint64(p[1:9]), 9, true
	}
	// Number of extra bytes is the count of leading one bits in the header.
	l := bits.LeadingZeros8(^header)
	base := byte(int(1<<8) - (1 << (8 - l)))
	high := uint64(header - base)
	if len(p) < 1+l {
		return 0, 0, false
	}
	remainder := DecodeLittleEndian(p[1 : 1+l])
	return (high << (8 * l)) | remainder, 1 + l, true
}

func EncodeLittleEndian(octets int, x uint64) []byte {
	switch octets {
	case 1:
		return []byte{byte(x)}
	case 2:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(x))
		return buf[:]
	case 4:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(x))
		return buf[:]
	case 8:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], x)
		return buf[:]
	default:
		result := make([]byte, octets)
		for i := 0; i < octets; i++ {
			result[i] = byte(x)
			x >>= 8
		}
		return result
	}
}

func DecodeLittleEndian(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		var x uint64
		for i, v := range b {
			x |= uint64(v) << (8 * i)
		}
		return x
	}
}

// UnsignedToSigned converts an unsigned integer x (assumed to be in [0, 2^(8*n)))
// into its two's complement signed representation as an int64.
func UnsignedToSigned(octets int, x uint64) int64 {
	if octets >= 8 {
		return int64(x)
	}
	totalBits := uint(8 * octets)
	signBit := uint64(1) << (totalBits - 1)
	if x < signBit {
		return int64(x)
	}
	return int64(x) - int64(uint64(1)<<totalBits)
}
