package rszfile

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rszkit/rszfile/schema"
	"github.com/x448/float16"
)

// Value holds a field value of a particular type.
type Value interface {
	// Type returns the field type of the value. For arrays, this is the
	// type of the elements.
	Type() schema.FieldType

	// String returns a string representation of the current value.
	String() string

	// Copy returns a copy of the value, which can be safely modified. Nested
	// objects are shared, not copied.
	Copy() Value
}

// NewValue returns the zero value of the given type. Data values are sized
// to size bytes.
func NewValue(typ schema.FieldType, size int) Value {
	switch typ {
	case schema.TypeData:
		return make(ValueData, size)
	case schema.TypeObject:
		return ValueObject{}
	case schema.TypeUserData:
		return ValueUserData{}
	}
	newValue := valueGenerators[typ]
	if newValue == nil {
		return nil
	}
	return newValue()
}

// NewArray returns an empty array of the given element type.
func NewArray(typ schema.FieldType) *ValueArray {
	return &ValueArray{Elem: typ}
}

// ZeroValue returns the zero value of a field.
func ZeroValue(f schema.Field) Value {
	if f.Array {
		return NewArray(f.Type)
	}
	return NewValue(f.Type, f.Size)
}

type valueGenerator func() Value

var valueGenerators = map[schema.FieldType]valueGenerator{
	schema.TypeBool:          func() Value { return ValueBool(false) },
	schema.TypeS8:            func() Value { return ValueS8(0) },
	schema.TypeU8:            func() Value { return ValueU8(0) },
	schema.TypeS16:           func() Value { return ValueS16(0) },
	schema.TypeU16:           func() Value { return ValueU16(0) },
	schema.TypeS32:           func() Value { return ValueS32(0) },
	schema.TypeU32:           func() Value { return ValueU32(0) },
	schema.TypeS64:           func() Value { return ValueS64(0) },
	schema.TypeU64:           func() Value { return ValueU64(0) },
	schema.TypeF16:           func() Value { return ValueF16(0) },
	schema.TypeF32:           func() Value { return ValueF32(0) },
	schema.TypeF64:           func() Value { return ValueF64(0) },
	schema.TypeString:        func() Value { return ValueString("") },
	schema.TypeResource:      func() Value { return ValueResource("") },
	schema.TypeGUID:          func() Value { return ValueGUID{} },
	schema.TypeURI:           func() Value { return ValueURI{} },
	schema.TypeGameObjectRef: func() Value { return ValueGameObjectRef{} },
	schema.TypeVec2:          func() Value { return ValueVec2{} },
	schema.TypeVec3:          func() Value { return ValueVec3{} },
	schema.TypeVec4:          func() Value { return ValueVec4{} },
	schema.TypeFloat2:        func() Value { return ValueFloat2{} },
	schema.TypeFloat3:        func() Value { return ValueFloat3{} },
	schema.TypeFloat4:        func() Value { return ValueFloat4{} },
	schema.TypePoint:         func() Value { return ValuePoint{} },
	schema.TypeSize:          func() Value { return ValueSize{} },
	schema.TypeRect:          func() Value { return ValueRect{} },
	schema.TypeQuaternion:    func() Value { return ValueQuaternion(mgl32.QuatIdent()) },
	schema.TypeColor:         func() Value { return ValueColor{} },
	schema.TypeAABB:          func() Value { return ValueAABB{} },
	schema.TypeRange:         func() Value { return ValueRange{} },
	schema.TypeRangeI:        func() Value { return ValueRangeI{} },
	schema.TypeInt2:          func() Value { return ValueInt2{} },
	schema.TypeInt3:          func() Value { return ValueInt3{} },
	schema.TypeInt4:          func() Value { return ValueInt4{} },
	schema.TypeUint2:         func() Value { return ValueUint2{} },
	schema.TypeUint3:         func() Value { return ValueUint3{} },
	schema.TypeMat4:          func() Value { return ValueMat4(mgl32.Ident4()) },
	schema.TypePosition:      func() Value { return ValuePosition{} },
	schema.TypeSphere:        func() Value { return ValueSphere{} },
	schema.TypeCapsule:       func() Value { return ValueCapsule{} },
	schema.TypeOBB:           func() Value { return ValueOBB{Coord: mgl32.Ident4()} },
	schema.TypeSfix:          func() Value { return ValueSfix(0) },
	schema.TypeSfix2:         func() Value { return ValueSfix2{} },
	schema.TypeSfix3:         func() Value { return ValueSfix3{} },
	schema.TypeSfix4:         func() Value { return ValueSfix4{} },
}

func joinstr(a ...string) string {
	return strings.Join(a, "")
}

func f32(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func f64(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floats(v ...float32) string {
	s := make([]string, len(v))
	for i, f := range v {
		s[i] = f32(f)
	}
	return strings.Join(s, ", ")
}

func ints(v ...int32) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.FormatInt(int64(n), 10)
	}
	return strings.Join(s, ", ")
}

func uints(v ...uint32) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.FormatUint(uint64(n), 10)
	}
	return strings.Join(s, ", ")
}

////////////////////////////////////////////////////////////////
// Values

// ValueData is a raw blob, used for fields whose type is not understood.
type ValueData []byte

func (ValueData) Type() schema.FieldType {
	return schema.TypeData
}
func (t ValueData) String() string {
	return hex.EncodeToString(t)
}
func (t ValueData) Copy() Value {
	c := make(ValueData, len(t))
	copy(c, t)
	return c
}

////////////////

type ValueBool bool

func (ValueBool) Type() schema.FieldType {
	return schema.TypeBool
}
func (t ValueBool) String() string {
	return strconv.FormatBool(bool(t))
}
func (t ValueBool) Copy() Value {
	return t
}

////////////////

type ValueS8 int8

func (ValueS8) Type() schema.FieldType {
	return schema.TypeS8
}
func (t ValueS8) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueS8) Copy() Value {
	return t
}

////////////////

type ValueU8 uint8

func (ValueU8) Type() schema.FieldType {
	return schema.TypeU8
}
func (t ValueU8) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueU8) Copy() Value {
	return t
}

////////////////

type ValueS16 int16

func (ValueS16) Type() schema.FieldType {
	return schema.TypeS16
}
func (t ValueS16) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueS16) Copy() Value {
	return t
}

////////////////

type ValueU16 uint16

func (ValueU16) Type() schema.FieldType {
	return schema.TypeU16
}
func (t ValueU16) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueU16) Copy() Value {
	return t
}

////////////////

type ValueS32 int32

func (ValueS32) Type() schema.FieldType {
	return schema.TypeS32
}
func (t ValueS32) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueS32) Copy() Value {
	return t
}

////////////////

type ValueU32 uint32

func (ValueU32) Type() schema.FieldType {
	return schema.TypeU32
}
func (t ValueU32) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueU32) Copy() Value {
	return t
}

////////////////

type ValueS64 int64

func (ValueS64) Type() schema.FieldType {
	return schema.TypeS64
}
func (t ValueS64) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueS64) Copy() Value {
	return t
}

////////////////

type ValueU64 uint64

func (ValueU64) Type() schema.FieldType {
	return schema.TypeU64
}
func (t ValueU64) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueU64) Copy() Value {
	return t
}

////////////////

// ValueF16 is a half-precision float.
type ValueF16 float16.Float16

func (ValueF16) Type() schema.FieldType {
	return schema.TypeF16
}
func (t ValueF16) String() string {
	return f32(t.Float32())
}
func (t ValueF16) Copy() Value {
	return t
}

// Float32 returns the value as a float32.
func (t ValueF16) Float32() float32 {
	return float16.Float16(t).Float32()
}

// NewValueF16 rounds f to the nearest half-precision value.
func NewValueF16(f float32) ValueF16 {
	return ValueF16(float16.Fromfloat32(f))
}

////////////////

type ValueF32 float32

func (ValueF32) Type() schema.FieldType {
	return schema.TypeF32
}
func (t ValueF32) String() string {
	return f32(float32(t))
}
func (t ValueF32) Copy() Value {
	return t
}

////////////////

type ValueF64 float64

func (ValueF64) Type() schema.FieldType {
	return schema.TypeF64
}
func (t ValueF64) String() string {
	return f64(float64(t))
}
func (t ValueF64) Copy() Value {
	return t
}

////////////////

type ValueString string

func (ValueString) Type() schema.FieldType {
	return schema.TypeString
}
func (t ValueString) String() string {
	return string(t)
}
func (t ValueString) Copy() Value {
	return t
}

////////////////

// ValueResource is the in-engine path of a resource, such as a mesh or a
// texture.
type ValueResource string

func (ValueResource) Type() schema.FieldType {
	return schema.TypeResource
}
func (t ValueResource) String() string {
	return string(t)
}
func (t ValueResource) Copy() Value {
	return t
}

////////////////

type ValueGUID uuid.UUID

func (ValueGUID) Type() schema.FieldType {
	return schema.TypeGUID
}
func (t ValueGUID) String() string {
	return uuid.UUID(t).String()
}
func (t ValueGUID) Copy() Value {
	return t
}

////////////////

type ValueURI uuid.UUID

func (ValueURI) Type() schema.FieldType {
	return schema.TypeURI
}
func (t ValueURI) String() string {
	return uuid.UUID(t).String()
}
func (t ValueURI) Copy() Value {
	return t
}

////////////////

// ValueGameObjectRef refers to a game object by id. GUID is the stored
// value. Target, when not nil, is the id of the game object the reference
// resolves to within the same tree, and takes precedence over GUID when the
// tree is exported.
type ValueGameObjectRef struct {
	GUID   uuid.UUID
	Target uuid.UUID
}

func (ValueGameObjectRef) Type() schema.FieldType {
	return schema.TypeGameObjectRef
}
func (t ValueGameObjectRef) String() string {
	if t.Target != uuid.Nil && t.Target != t.GUID {
		return joinstr(t.GUID.String(), " -> ", t.Target.String())
	}
	return t.GUID.String()
}
func (t ValueGameObjectRef) Copy() Value {
	return t
}

// ID returns the id the reference resolves to.
func (t ValueGameObjectRef) ID() uuid.UUID {
	if t.Target != uuid.Nil {
		return t.Target
	}
	return t.GUID
}

// IsEmpty returns whether the reference refers to nothing.
func (t ValueGameObjectRef) IsEmpty() bool {
	return t.ID() == uuid.Nil
}

////////////////

type ValueVec2 mgl32.Vec2

func (ValueVec2) Type() schema.FieldType {
	return schema.TypeVec2
}
func (t ValueVec2) String() string {
	return floats(t[:]...)
}
func (t ValueVec2) Copy() Value {
	return t
}

////////////////

type ValueVec3 mgl32.Vec3

func (ValueVec3) Type() schema.FieldType {
	return schema.TypeVec3
}
func (t ValueVec3) String() string {
	return floats(t[:]...)
}
func (t ValueVec3) Copy() Value {
	return t
}

////////////////

type ValueVec4 mgl32.Vec4

func (ValueVec4) Type() schema.FieldType {
	return schema.TypeVec4
}
func (t ValueVec4) String() string {
	return floats(t[:]...)
}
func (t ValueVec4) Copy() Value {
	return t
}

////////////////

type ValueFloat2 mgl32.Vec2

func (ValueFloat2) Type() schema.FieldType {
	return schema.TypeFloat2
}
func (t ValueFloat2) String() string {
	return floats(t[:]...)
}
func (t ValueFloat2) Copy() Value {
	return t
}

////////////////

type ValueFloat3 mgl32.Vec3

func (ValueFloat3) Type() schema.FieldType {
	return schema.TypeFloat3
}
func (t ValueFloat3) String() string {
	return floats(t[:]...)
}
func (t ValueFloat3) Copy() Value {
	return t
}

////////////////

type ValueFloat4 mgl32.Vec4

func (ValueFloat4) Type() schema.FieldType {
	return schema.TypeFloat4
}
func (t ValueFloat4) String() string {
	return floats(t[:]...)
}
func (t ValueFloat4) Copy() Value {
	return t
}

////////////////

type ValuePoint mgl32.Vec2

func (ValuePoint) Type() schema.FieldType {
	return schema.TypePoint
}
func (t ValuePoint) String() string {
	return floats(t[:]...)
}
func (t ValuePoint) Copy() Value {
	return t
}

////////////////

type ValueSize struct {
	W, H float32
}

func (ValueSize) Type() schema.FieldType {
	return schema.TypeSize
}
func (t ValueSize) String() string {
	return floats(t.W, t.H)
}
func (t ValueSize) Copy() Value {
	return t
}

////////////////

type ValueRect struct {
	Start, End mgl32.Vec2
}

func (ValueRect) Type() schema.FieldType {
	return schema.TypeRect
}
func (t ValueRect) String() string {
	return joinstr("{", floats(t.Start[:]...), "}, {", floats(t.End[:]...), "}")
}
func (t ValueRect) Copy() Value {
	return t
}

////////////////

// ValueQuaternion is a rotation, stored as x, y, z, w.
type ValueQuaternion mgl32.Quat

func (ValueQuaternion) Type() schema.FieldType {
	return schema.TypeQuaternion
}
func (t ValueQuaternion) String() string {
	return floats(t.V[0], t.V[1], t.V[2], t.W)
}
func (t ValueQuaternion) Copy() Value {
	return t
}

////////////////

type ValueColor struct {
	R, G, B, A uint8
}

func (ValueColor) Type() schema.FieldType {
	return schema.TypeColor
}
func (t ValueColor) String() string {
	return uints(uint32(t.R), uint32(t.G), uint32(t.B), uint32(t.A))
}
func (t ValueColor) Copy() Value {
	return t
}

////////////////

// ValueAABB is an axis-aligned box. Each corner is stored as four floats.
type ValueAABB struct {
	Min, Max mgl32.Vec4
}

func (ValueAABB) Type() schema.FieldType {
	return schema.TypeAABB
}
func (t ValueAABB) String() string {
	return joinstr("{", floats(t.Min[0], t.Min[1], t.Min[2]), "}, {", floats(t.Max[0], t.Max[1], t.Max[2]), "}")
}
func (t ValueAABB) Copy() Value {
	return t
}

////////////////

type ValueRange struct {
	Min, Max float32
}

func (ValueRange) Type() schema.FieldType {
	return schema.TypeRange
}
func (t ValueRange) String() string {
	return floats(t.Min, t.Max)
}
func (t ValueRange) Copy() Value {
	return t
}

////////////////

type ValueRangeI struct {
	Min, Max int32
}

func (ValueRangeI) Type() schema.FieldType {
	return schema.TypeRangeI
}
func (t ValueRangeI) String() string {
	return ints(t.Min, t.Max)
}
func (t ValueRangeI) Copy() Value {
	return t
}

////////////////

type ValueInt2 [2]int32

func (ValueInt2) Type() schema.FieldType {
	return schema.TypeInt2
}
func (t ValueInt2) String() string {
	return ints(t[:]...)
}
func (t ValueInt2) Copy() Value {
	return t
}

////////////////

type ValueInt3 [3]int32

func (ValueInt3) Type() schema.FieldType {
	return schema.TypeInt3
}
func (t ValueInt3) String() string {
	return ints(t[:]...)
}
func (t ValueInt3) Copy() Value {
	return t
}

////////////////

type ValueInt4 [4]int32

func (ValueInt4) Type() schema.FieldType {
	return schema.TypeInt4
}
func (t ValueInt4) String() string {
	return ints(t[:]...)
}
func (t ValueInt4) Copy() Value {
	return t
}

////////////////

type ValueUint2 [2]uint32

func (ValueUint2) Type() schema.FieldType {
	return schema.TypeUint2
}
func (t ValueUint2) String() string {
	return uints(t[:]...)
}
func (t ValueUint2) Copy() Value {
	return t
}

////////////////

type ValueUint3 [3]uint32

func (ValueUint3) Type() schema.FieldType {
	return schema.TypeUint3
}
func (t ValueUint3) String() string {
	return uints(t[:]...)
}
func (t ValueUint3) Copy() Value {
	return t
}

////////////////

// ValueMat4 is a column-major 4x4 matrix.
type ValueMat4 mgl32.Mat4

func (ValueMat4) Type() schema.FieldType {
	return schema.TypeMat4
}
func (t ValueMat4) String() string {
	return floats(t[:]...)
}
func (t ValueMat4) Copy() Value {
	return t
}

////////////////

// ValuePosition is a double-precision world position.
type ValuePosition mgl64.Vec3

func (ValuePosition) Type() schema.FieldType {
	return schema.TypePosition
}
func (t ValuePosition) String() string {
	return joinstr(f64(t[0]), ", ", f64(t[1]), ", ", f64(t[2]))
}
func (t ValuePosition) Copy() Value {
	return t
}

////////////////

type ValueSphere struct {
	Center mgl32.Vec3
	Radius float32
}

func (ValueSphere) Type() schema.FieldType {
	return schema.TypeSphere
}
func (t ValueSphere) String() string {
	return joinstr("{", floats(t.Center[:]...), "}, ", f32(t.Radius))
}
func (t ValueSphere) Copy() Value {
	return t
}

////////////////

type ValueCapsule struct {
	Start, End mgl32.Vec3
	Radius     float32
}

func (ValueCapsule) Type() schema.FieldType {
	return schema.TypeCapsule
}
func (t ValueCapsule) String() string {
	return joinstr("{", floats(t.Start[:]...), "}, {", floats(t.End[:]...), "}, ", f32(t.Radius))
}
func (t ValueCapsule) Copy() Value {
	return t
}

////////////////

// ValueOBB is an oriented box: a coordinate frame and half extents.
type ValueOBB struct {
	Coord  mgl32.Mat4
	Extent mgl32.Vec3
}

func (ValueOBB) Type() schema.FieldType {
	return schema.TypeOBB
}
func (t ValueOBB) String() string {
	return joinstr("{", floats(t.Coord[:]...), "}, {", floats(t.Extent[:]...), "}")
}
func (t ValueOBB) Copy() Value {
	return t
}

////////////////

// SfixOne is the raw value of 1.0 in fixed-point fields.
const SfixOne = 1 << 16

// ValueSfix is a fixed-point number with 16 fractional bits.
type ValueSfix int32

func (ValueSfix) Type() schema.FieldType {
	return schema.TypeSfix
}
func (t ValueSfix) String() string {
	return f64(t.Float64())
}
func (t ValueSfix) Copy() Value {
	return t
}

// Float64 returns the value as a float64.
func (t ValueSfix) Float64() float64 {
	return float64(t) / SfixOne
}

// NewValueSfix returns the fixed-point value nearest to f.
func NewValueSfix(f float64) ValueSfix {
	if f < 0 {
		return ValueSfix(f*SfixOne - 0.5)
	}
	return ValueSfix(f*SfixOne + 0.5)
}

func sfixes(v ...int32) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = ValueSfix(n).String()
	}
	return strings.Join(s, ", ")
}

////////////////

type ValueSfix2 [2]int32

func (ValueSfix2) Type() schema.FieldType {
	return schema.TypeSfix2
}
func (t ValueSfix2) String() string {
	return sfixes(t[:]...)
}
func (t ValueSfix2) Copy() Value {
	return t
}

////////////////

type ValueSfix3 [3]int32

func (ValueSfix3) Type() schema.FieldType {
	return schema.TypeSfix3
}
func (t ValueSfix3) String() string {
	return sfixes(t[:]...)
}
func (t ValueSfix3) Copy() Value {
	return t
}

////////////////

type ValueSfix4 [4]int32

func (ValueSfix4) Type() schema.FieldType {
	return schema.TypeSfix4
}
func (t ValueSfix4) String() string {
	return sfixes(t[:]...)
}
func (t ValueSfix4) Copy() Value {
	return t
}

////////////////

// ValueObject holds a nested object. The pointer identifies the object:
// fields holding the same pointer refer to the same instance when encoded.
// A nil Object is the empty reference.
type ValueObject struct {
	Object *Object
}

func (ValueObject) Type() schema.FieldType {
	return schema.TypeObject
}
func (t ValueObject) String() string {
	if t.Object == nil {
		return "<nil>"
	}
	return t.Object.ClassName
}
func (t ValueObject) Copy() Value {
	return t
}

////////////////

// ValueUserData refers to userdata. Path is the in-engine path of an
// external userdata file. Object holds the content of embedded userdata. An
// empty ClassName is the empty reference.
type ValueUserData struct {
	ClassName string
	Path      string
	Object    *Object
}

func (ValueUserData) Type() schema.FieldType {
	return schema.TypeUserData
}
func (t ValueUserData) String() string {
	if t.ClassName == "" {
		return "<nil>"
	}
	if t.Path != "" {
		return joinstr(t.ClassName, " (", t.Path, ")")
	}
	return t.ClassName
}
func (t ValueUserData) Copy() Value {
	return t
}

// IsEmpty returns whether the value refers to nothing.
func (t ValueUserData) IsEmpty() bool {
	return t.ClassName == ""
}

////////////////

// ValueArray is the value of an array field.
type ValueArray struct {
	Elem   schema.FieldType
	Values []Value
}

func (t *ValueArray) Type() schema.FieldType {
	return t.Elem
}
func (t *ValueArray) String() string {
	s := make([]string, len(t.Values))
	for i, v := range t.Values {
		s[i] = v.String()
	}
	return joinstr("[", strings.Join(s, ", "), "]")
}
func (t *ValueArray) Copy() Value {
	c := &ValueArray{Elem: t.Elem, Values: make([]Value, len(t.Values))}
	for i, v := range t.Values {
		c.Values[i] = v.Copy()
	}
	return c
}

// Append adds values to the end of the array.
func (t *ValueArray) Append(v ...Value) {
	t.Values = append(t.Values, v...)
}

// Len returns the number of elements.
func (t *ValueArray) Len() int {
	return len(t.Values)
}
