package rsz

import (
	"fmt"
	"io"

	"github.com/anaminus/parse"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
	"golang.org/x/text/encoding/unicode"
)

// naturalSize is the number of bytes a value of each fixed-size type
// occupies before padding to the field size.
var naturalSize = map[schema.FieldType]int{
	schema.TypeObject:        4,
	schema.TypeUserData:      4,
	schema.TypeBool:          1,
	schema.TypeS8:            1,
	schema.TypeU8:            1,
	schema.TypeS16:           2,
	schema.TypeU16:           2,
	schema.TypeS32:           4,
	schema.TypeU32:           4,
	schema.TypeS64:           8,
	schema.TypeU64:           8,
	schema.TypeF16:           2,
	schema.TypeF32:           4,
	schema.TypeF64:           8,
	schema.TypeGUID:          16,
	schema.TypeURI:           16,
	schema.TypeGameObjectRef: 16,
	schema.TypeVec2:          8,
	schema.TypeVec3:          12,
	schema.TypeVec4:          16,
	schema.TypeFloat2:        8,
	schema.TypeFloat3:        12,
	schema.TypeFloat4:        16,
	schema.TypePoint:         8,
	schema.TypeSize:          8,
	schema.TypeRect:          16,
	schema.TypeQuaternion:    16,
	schema.TypeColor:         4,
	schema.TypeAABB:          32,
	schema.TypeRange:         8,
	schema.TypeRangeI:        8,
	schema.TypeInt2:          8,
	schema.TypeInt3:          12,
	schema.TypeInt4:          16,
	schema.TypeUint2:         8,
	schema.TypeUint3:         12,
	schema.TypeMat4:          64,
	schema.TypePosition:      24,
	schema.TypeSphere:        16,
	schema.TypeCapsule:       36,
	schema.TypeOBB:           76,
	schema.TypeSfix:          4,
	schema.TypeSfix2:         8,
	schema.TypeSfix3:         12,
	schema.TypeSfix4:         16,
}

// elemSize returns the number of bytes occupied by one element of a
// fixed-size field, and the padding following its natural bytes.
func elemSize(f schema.Field) (size, pad int, err error) {
	if f.Type == schema.TypeData {
		if f.Size <= 0 {
			return 0, 0, fmt.Errorf("data field without size")
		}
		return f.Size, 0, nil
	}
	n, ok := naturalSize[f.Type]
	if !ok {
		return 0, 0, fmt.Errorf("type %s has no fixed size", f.Type)
	}
	if f.Size > 0 && f.Size < n {
		return 0, 0, fmt.Errorf("size %d is smaller than %s (%d)", f.Size, f.Type, n)
	}
	if f.Size > n {
		return f.Size, f.Size - n, nil
	}
	return n, 0, nil
}

// maxStringLength bounds the character count of a string, so that corrupt
// data does not cause huge allocations.
const maxStringLength = 1 << 20

func alignTo(n int64, a int) int64 {
	if a <= 1 {
		return n
	}
	if r := n % int64(a); r != 0 {
		return n + int64(a) - r
	}
	return n
}

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeUTF16 decodes units of UTF-16LE text, stopping at the first null.
func decodeUTF16(b []byte) (string, error) {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	s, err := utf16.NewDecoder().Bytes(b)
	return string(s), err
}

// encodeUTF16 encodes s as UTF-16LE text followed by a null unit.
func encodeUTF16(s string) ([]byte, error) {
	b, err := utf16.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return append(b, 0, 0), nil
}

////////////////////////////////////////////////////////////////

// reader reads values relative to the start of a block.
type reader struct {
	fr   *parse.BinaryReader
	base int64
}

func newReader(r io.Reader, base int64) *reader {
	return &reader{fr: parse.NewBinaryReader(r), base: base}
}

func (r *reader) pos() int64 {
	return r.base + r.fr.N()
}

func (r *reader) skip(n int64) bool {
	if n <= 0 {
		return false
	}
	return r.fr.Bytes(make([]byte, n))
}

func (r *reader) align(a int) bool {
	p := r.pos()
	return r.skip(alignTo(p, a) - p)
}

func (r *reader) i32() (v int32) {
	r.fr.Number(&v)
	return v
}

func (r *reader) u32() (v uint32) {
	r.fr.Number(&v)
	return v
}

func (r *reader) f32() (v float32) {
	r.fr.Number(&v)
	return v
}

func (r *reader) floats(v []float32) {
	for i := range v {
		r.fr.Number(&v[i])
	}
}

func (r *reader) int32s(v []int32) {
	for i := range v {
		r.fr.Number(&v[i])
	}
}

func (r *reader) uint32s(v []uint32) {
	for i := range v {
		r.fr.Number(&v[i])
	}
}

func (r *reader) guid() (id uuid.UUID) {
	r.fr.Bytes(id[:])
	return id
}

func (r *reader) vec3pad() (v mgl32.Vec3) {
	r.floats(v[:])
	r.skip(4)
	return v
}

func (r *reader) string() (string, error) {
	count := r.u32()
	if r.fr.Err() != nil || count == 0 {
		return "", r.fr.Err()
	}
	if count > maxStringLength {
		return "", fmt.Errorf("string length %d exceeds limit", count)
	}
	b := make([]byte, int64(count)*2)
	if r.fr.Bytes(b) {
		return "", r.fr.Err()
	}
	return decodeUTF16(b)
}

// value reads the value of a field, including arrays.
func (r *reader) value(f schema.Field) (rszfile.Value, error) {
	if !f.Array {
		return r.elem(f)
	}
	r.align(4)
	count := r.i32()
	if err := r.fr.Err(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative array length %d", count)
	}
	arr := &rszfile.ValueArray{Elem: f.Type, Values: make([]rszfile.Value, 0, min(int(count), 1024))}
	for i := int32(0); i < count; i++ {
		v, err := r.elem(f)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		arr.Values = append(arr.Values, v)
	}
	return arr, nil
}

// elem reads one element of a field.
func (r *reader) elem(f schema.Field) (v rszfile.Value, err error) {
	r.align(f.Align)
	if f.Type.IsString() {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		if f.Type == schema.TypeResource {
			return rszfile.ValueResource(s), nil
		}
		return rszfile.ValueString(s), nil
	}

	_, pad, err := elemSize(f)
	if err != nil {
		return nil, err
	}

	fr := r.fr
	switch f.Type {
	case schema.TypeData:
		b := make(rszfile.ValueData, f.Size)
		fr.Bytes(b)
		v = b
	case schema.TypeObject, schema.TypeUserData:
		v = Ref(r.i32())
	case schema.TypeBool:
		var b uint8
		fr.Number(&b)
		v = rszfile.ValueBool(b != 0)
	case schema.TypeS8:
		var n int8
		fr.Number(&n)
		v = rszfile.ValueS8(n)
	case schema.TypeU8:
		var n uint8
		fr.Number(&n)
		v = rszfile.ValueU8(n)
	case schema.TypeS16:
		var n int16
		fr.Number(&n)
		v = rszfile.ValueS16(n)
	case schema.TypeU16:
		var n uint16
		fr.Number(&n)
		v = rszfile.ValueU16(n)
	case schema.TypeS32:
		v = rszfile.ValueS32(r.i32())
	case schema.TypeU32:
		v = rszfile.ValueU32(r.u32())
	case schema.TypeS64:
		var n int64
		fr.Number(&n)
		v = rszfile.ValueS64(n)
	case schema.TypeU64:
		var n uint64
		fr.Number(&n)
		v = rszfile.ValueU64(n)
	case schema.TypeF16:
		var n uint16
		fr.Number(&n)
		v = rszfile.ValueF16(n)
	case schema.TypeF32:
		v = rszfile.ValueF32(r.f32())
	case schema.TypeF64:
		var n float64
		fr.Number(&n)
		v = rszfile.ValueF64(n)
	case schema.TypeGUID:
		v = rszfile.ValueGUID(r.guid())
	case schema.TypeURI:
		v = rszfile.ValueURI(r.guid())
	case schema.TypeGameObjectRef:
		v = rszfile.ValueGameObjectRef{GUID: r.guid()}
	case schema.TypeVec2:
		var t rszfile.ValueVec2
		r.floats(t[:])
		v = t
	case schema.TypeVec3:
		var t rszfile.ValueVec3
		r.floats(t[:])
		v = t
	case schema.TypeVec4:
		var t rszfile.ValueVec4
		r.floats(t[:])
		v = t
	case schema.TypeFloat2:
		var t rszfile.ValueFloat2
		r.floats(t[:])
		v = t
	case schema.TypeFloat3:
		var t rszfile.ValueFloat3
		r.floats(t[:])
		v = t
	case schema.TypeFloat4:
		var t rszfile.ValueFloat4
		r.floats(t[:])
		v = t
	case schema.TypePoint:
		var t rszfile.ValuePoint
		r.floats(t[:])
		v = t
	case schema.TypeSize:
		v = rszfile.ValueSize{W: r.f32(), H: r.f32()}
	case schema.TypeRect:
		var t rszfile.ValueRect
		r.floats(t.Start[:])
		r.floats(t.End[:])
		v = t
	case schema.TypeQuaternion:
		var t rszfile.ValueQuaternion
		r.floats(t.V[:])
		t.W = r.f32()
		v = t
	case schema.TypeColor:
		var c [4]uint8
		fr.Bytes(c[:])
		v = rszfile.ValueColor{R: c[0], G: c[1], B: c[2], A: c[3]}
	case schema.TypeAABB:
		var t rszfile.ValueAABB
		r.floats(t.Min[:])
		r.floats(t.Max[:])
		v = t
	case schema.TypeRange:
		v = rszfile.ValueRange{Min: r.f32(), Max: r.f32()}
	case schema.TypeRangeI:
		v = rszfile.ValueRangeI{Min: r.i32(), Max: r.i32()}
	case schema.TypeInt2:
		var t rszfile.ValueInt2
		r.int32s(t[:])
		v = t
	case schema.TypeInt3:
		var t rszfile.ValueInt3
		r.int32s(t[:])
		v = t
	case schema.TypeInt4:
		var t rszfile.ValueInt4
		r.int32s(t[:])
		v = t
	case schema.TypeUint2:
		var t rszfile.ValueUint2
		r.uint32s(t[:])
		v = t
	case schema.TypeUint3:
		var t rszfile.ValueUint3
		r.uint32s(t[:])
		v = t
	case schema.TypeMat4:
		var t rszfile.ValueMat4
		r.floats(t[:])
		v = t
	case schema.TypePosition:
		var t rszfile.ValuePosition
		for i := range t {
			fr.Number(&t[i])
		}
		v = t
	case schema.TypeSphere:
		var t rszfile.ValueSphere
		r.floats(t.Center[:])
		t.Radius = r.f32()
		v = t
	case schema.TypeCapsule:
		var t rszfile.ValueCapsule
		t.Start = r.vec3pad()
		t.End = r.vec3pad()
		t.Radius = r.f32()
		v = t
	case schema.TypeOBB:
		var t rszfile.ValueOBB
		r.floats(t.Coord[:])
		r.floats(t.Extent[:])
		v = t
	case schema.TypeSfix:
		v = rszfile.ValueSfix(r.i32())
	case schema.TypeSfix2:
		var t rszfile.ValueSfix2
		r.int32s(t[:])
		v = t
	case schema.TypeSfix3:
		var t rszfile.ValueSfix3
		r.int32s(t[:])
		v = t
	case schema.TypeSfix4:
		var t rszfile.ValueSfix4
		r.int32s(t[:])
		v = t
	default:
		return nil, fmt.Errorf("unsupported type %s", f.Type)
	}
	r.skip(int64(pad))
	if err := fr.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

////////////////////////////////////////////////////////////////

// countWriter counts the bytes written through it.
type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writer writes values relative to the start of a block.
type writer struct {
	fw   *parse.BinaryWriter
	cw   *countWriter
	base int64
}

func newWriter(w io.Writer, base int64) *writer {
	cw := &countWriter{w: w}
	return &writer{fw: parse.NewBinaryWriter(cw), cw: cw, base: base}
}

func (w *writer) pos() int64 {
	return w.base + w.cw.n
}

func (w *writer) zero(n int64) bool {
	if n <= 0 {
		return false
	}
	return w.fw.Bytes(make([]byte, n))
}

func (w *writer) align(a int) bool {
	p := w.pos()
	return w.zero(alignTo(p, a) - p)
}

func (w *writer) floats(v ...float32) {
	for _, f := range v {
		w.fw.Number(f)
	}
}

func (w *writer) int32s(v ...int32) {
	for _, n := range v {
		w.fw.Number(n)
	}
}

func (w *writer) uint32s(v ...uint32) {
	for _, n := range v {
		w.fw.Number(n)
	}
}

func (w *writer) vec3pad(v mgl32.Vec3) {
	w.floats(v[:]...)
	w.zero(4)
}

func (w *writer) string(s string) error {
	if s == "" {
		w.fw.Number(uint32(0))
		return nil
	}
	b, err := encodeUTF16(s)
	if err != nil {
		return err
	}
	w.fw.Number(uint32(len(b) / 2))
	w.fw.Bytes(b)
	return nil
}

// value writes the value of a field, including arrays.
func (w *writer) value(f schema.Field, v rszfile.Value) error {
	if !f.Array {
		return w.elem(f, v)
	}
	arr, ok := v.(*rszfile.ValueArray)
	if !ok {
		return fmt.Errorf("expected array, got %T", v)
	}
	w.align(4)
	w.fw.Number(int32(len(arr.Values)))
	for i, e := range arr.Values {
		if err := w.elem(f, e); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func mismatch(f schema.Field, v rszfile.Value) error {
	return fmt.Errorf("value %T does not match type %s", v, f.Type)
}

// elem writes one element of a field.
func (w *writer) elem(f schema.Field, v rszfile.Value) error {
	w.align(f.Align)
	if f.Type.IsString() {
		var s string
		switch v := v.(type) {
		case rszfile.ValueString:
			s = string(v)
		case rszfile.ValueResource:
			s = string(v)
		default:
			return mismatch(f, v)
		}
		if err := w.string(s); err != nil {
			return err
		}
		return w.fw.Err()
	}

	_, pad, err := elemSize(f)
	if err != nil {
		return err
	}

	fw := w.fw
	switch f.Type {
	case schema.TypeData:
		b, ok := v.(rszfile.ValueData)
		if !ok {
			return mismatch(f, v)
		}
		if len(b) != f.Size {
			return fmt.Errorf("data length %d does not match size %d", len(b), f.Size)
		}
		fw.Bytes(b)
	case schema.TypeObject, schema.TypeUserData:
		r, ok := v.(Ref)
		if !ok {
			return mismatch(f, v)
		}
		fw.Number(int32(r))
	default:
		if v == nil || v.Type() != f.Type {
			return mismatch(f, v)
		}
		switch v := v.(type) {
		case rszfile.ValueBool:
			var b uint8
			if v {
				b = 1
			}
			fw.Number(b)
		case rszfile.ValueS8:
			fw.Number(int8(v))
		case rszfile.ValueU8:
			fw.Number(uint8(v))
		case rszfile.ValueS16:
			fw.Number(int16(v))
		case rszfile.ValueU16:
			fw.Number(uint16(v))
		case rszfile.ValueS32:
			fw.Number(int32(v))
		case rszfile.ValueU32:
			fw.Number(uint32(v))
		case rszfile.ValueS64:
			fw.Number(int64(v))
		case rszfile.ValueU64:
			fw.Number(uint64(v))
		case rszfile.ValueF16:
			fw.Number(uint16(v))
		case rszfile.ValueF32:
			fw.Number(float32(v))
		case rszfile.ValueF64:
			fw.Number(float64(v))
		case rszfile.ValueGUID:
			fw.Bytes(v[:])
		case rszfile.ValueURI:
			fw.Bytes(v[:])
		case rszfile.ValueGameObjectRef:
			fw.Bytes(v.GUID[:])
		case rszfile.ValueVec2:
			w.floats(v[:]...)
		case rszfile.ValueVec3:
			w.floats(v[:]...)
		case rszfile.ValueVec4:
			w.floats(v[:]...)
		case rszfile.ValueFloat2:
			w.floats(v[:]...)
		case rszfile.ValueFloat3:
			w.floats(v[:]...)
		case rszfile.ValueFloat4:
			w.floats(v[:]...)
		case rszfile.ValuePoint:
			w.floats(v[:]...)
		case rszfile.ValueSize:
			w.floats(v.W, v.H)
		case rszfile.ValueRect:
			w.floats(v.Start[0], v.Start[1], v.End[0], v.End[1])
		case rszfile.ValueQuaternion:
			w.floats(v.V[0], v.V[1], v.V[2], v.W)
		case rszfile.ValueColor:
			fw.Bytes([]byte{v.R, v.G, v.B, v.A})
		case rszfile.ValueAABB:
			w.floats(v.Min[:]...)
			w.floats(v.Max[:]...)
		case rszfile.ValueRange:
			w.floats(v.Min, v.Max)
		case rszfile.ValueRangeI:
			w.int32s(v.Min, v.Max)
		case rszfile.ValueInt2:
			w.int32s(v[:]...)
		case rszfile.ValueInt3:
			w.int32s(v[:]...)
		case rszfile.ValueInt4:
			w.int32s(v[:]...)
		case rszfile.ValueUint2:
			w.uint32s(v[:]...)
		case rszfile.ValueUint3:
			w.uint32s(v[:]...)
		case rszfile.ValueMat4:
			w.floats(v[:]...)
		case rszfile.ValuePosition:
			for _, n := range v {
				fw.Number(n)
			}
		case rszfile.ValueSphere:
			w.floats(v.Center[:]...)
			w.floats(v.Radius)
		case rszfile.ValueCapsule:
			w.vec3pad(v.Start)
			w.vec3pad(v.End)
			w.floats(v.Radius)
		case rszfile.ValueOBB:
			w.floats(v.Coord[:]...)
			w.floats(v.Extent[:]...)
		case rszfile.ValueSfix:
			fw.Number(int32(v))
		case rszfile.ValueSfix2:
			w.int32s(v[:]...)
		case rszfile.ValueSfix3:
			w.int32s(v[:]...)
		case rszfile.ValueSfix4:
			w.int32s(v[:]...)
		default:
			return mismatch(f, v)
		}
	}
	w.zero(int64(pad))
	return fw.Err()
}
