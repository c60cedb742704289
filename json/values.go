package json

import (
	"encoding/base64"
	"strconv"

	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
	"github.com/x448/float16"
)

func indexJSON(v, i, p interface{}) bool {
	var value interface{}
	switch object := v.(type) {
	case map[string]interface{}:
		index, ok := i.(string)
		if !ok {
			return false
		}
		value, ok = object[index]
		if !ok {
			return false
		}
	case []interface{}:
		index, ok := i.(int)
		if !ok {
			return false
		}
		if index >= len(object) || index < 0 {
			return false
		}
		value = object[index]
	default:
		return false
	}
	switch p := p.(type) {
	case *bool:
		value, ok := value.(bool)
		if !ok {
			return false
		}
		*p = value
	case *float64:
		value, ok := value.(float64)
		if !ok {
			return false
		}
		*p = value
	case *string:
		value, ok := value.(string)
		if !ok {
			return false
		}
		*p = value
	case *[]interface{}:
		value, ok := value.([]interface{})
		if !ok {
			return false
		}
		*p = value
	case *interface{}:
		*p = value
	}
	return true
}

func nums32(v ...float32) []interface{} {
	a := make([]interface{}, len(v))
	for i, f := range v {
		a[i] = float64(f)
	}
	return a
}

func ints32(v ...int32) []interface{} {
	a := make([]interface{}, len(v))
	for i, n := range v {
		a[i] = float64(n)
	}
	return a
}

func uints32(v ...uint32) []interface{} {
	a := make([]interface{}, len(v))
	for i, n := range v {
		a[i] = float64(n)
	}
	return a
}

// scalarToJSON converts a value that holds no objects. Multi-component
// values become arrays of numbers, in the order of their fields.
func scalarToJSON(value rszfile.Value) interface{} {
	switch v := value.(type) {
	case rszfile.ValueData:
		return base64.StdEncoding.EncodeToString(v)
	case rszfile.ValueBool:
		return bool(v)
	case rszfile.ValueS8:
		return float64(v)
	case rszfile.ValueU8:
		return float64(v)
	case rszfile.ValueS16:
		return float64(v)
	case rszfile.ValueU16:
		return float64(v)
	case rszfile.ValueS32:
		return float64(v)
	case rszfile.ValueU32:
		return float64(v)
	case rszfile.ValueS64:
		// 64-bit integers do not survive float64.
		return strconv.FormatInt(int64(v), 10)
	case rszfile.ValueU64:
		return strconv.FormatUint(uint64(v), 10)
	case rszfile.ValueF16:
		// Raw bits, so that the value is exact.
		return float64(float16.Float16(v).Bits())
	case rszfile.ValueF32:
		return float64(v)
	case rszfile.ValueF64:
		return float64(v)
	case rszfile.ValueString:
		return string(v)
	case rszfile.ValueResource:
		return string(v)
	case rszfile.ValueGUID:
		return uuid.UUID(v).String()
	case rszfile.ValueURI:
		return uuid.UUID(v).String()
	case rszfile.ValueGameObjectRef:
		ref := map[string]interface{}{"guid": v.GUID.String()}
		if v.Target != uuid.Nil {
			ref["target"] = v.Target.String()
		}
		return ref
	case rszfile.ValueVec2:
		return nums32(v[:]...)
	case rszfile.ValueVec3:
		return nums32(v[:]...)
	case rszfile.ValueVec4:
		return nums32(v[:]...)
	case rszfile.ValueFloat2:
		return nums32(v[:]...)
	case rszfile.ValueFloat3:
		return nums32(v[:]...)
	case rszfile.ValueFloat4:
		return nums32(v[:]...)
	case rszfile.ValuePoint:
		return nums32(v[:]...)
	case rszfile.ValueSize:
		return nums32(v.W, v.H)
	case rszfile.ValueRect:
		return nums32(v.Start[0], v.Start[1], v.End[0], v.End[1])
	case rszfile.ValueQuaternion:
		return nums32(v.V[0], v.V[1], v.V[2], v.W)
	case rszfile.ValueColor:
		return []interface{}{float64(v.R), float64(v.G), float64(v.B), float64(v.A)}
	case rszfile.ValueAABB:
		return nums32(append(v.Min[:], v.Max[:]...)...)
	case rszfile.ValueRange:
		return nums32(v.Min, v.Max)
	case rszfile.ValueRangeI:
		return ints32(v.Min, v.Max)
	case rszfile.ValueInt2:
		return ints32(v[:]...)
	case rszfile.ValueInt3:
		return ints32(v[:]...)
	case rszfile.ValueInt4:
		return ints32(v[:]...)
	case rszfile.ValueUint2:
		return uints32(v[:]...)
	case rszfile.ValueUint3:
		return uints32(v[:]...)
	case rszfile.ValueMat4:
		return nums32(v[:]...)
	case rszfile.ValuePosition:
		return []interface{}{v[0], v[1], v[2]}
	case rszfile.ValueSphere:
		return nums32(v.Center[0], v.Center[1], v.Center[2], v.Radius)
	case rszfile.ValueCapsule:
		return nums32(v.Start[0], v.Start[1], v.Start[2], v.End[0], v.End[1], v.End[2], v.Radius)
	case rszfile.ValueOBB:
		return nums32(append(v.Coord[:], v.Extent[:]...)...)
	case rszfile.ValueSfix:
		return float64(v)
	case rszfile.ValueSfix2:
		return ints32(v[:]...)
	case rszfile.ValueSfix3:
		return ints32(v[:]...)
	case rszfile.ValueSfix4:
		return ints32(v[:]...)
	}
	return nil
}

// numbers returns the n numbers of an array, or false if ivalue is not an
// array of at least n numbers.
func numbers(ivalue interface{}, n int) ([]float64, bool) {
	a, ok := ivalue.([]interface{})
	if !ok || len(a) < n {
		return nil, false
	}
	f := make([]float64, n)
	for i := range f {
		if f[i], ok = a[i].(float64); !ok {
			return nil, false
		}
	}
	return f, true
}

func f32s(f []float64) []float32 {
	a := make([]float32, len(f))
	for i, v := range f {
		a[i] = float32(v)
	}
	return a
}

// ValueFromJSON converts the JSON form of a value of the given type. Object
// and UserData values are not handled. Returns nil if the value does not
// match the type.
func ValueFromJSON(typ schema.FieldType, ivalue interface{}) rszfile.Value {
	num, isNum := ivalue.(float64)
	str, isStr := ivalue.(string)
	switch typ {
	case schema.TypeData:
		if isStr {
			if b, err := base64.StdEncoding.DecodeString(str); err == nil {
				return rszfile.ValueData(b)
			}
		}
	case schema.TypeBool:
		if b, ok := ivalue.(bool); ok {
			return rszfile.ValueBool(b)
		}
	case schema.TypeS8:
		if isNum {
			return rszfile.ValueS8(num)
		}
	case schema.TypeU8:
		if isNum {
			return rszfile.ValueU8(num)
		}
	case schema.TypeS16:
		if isNum {
			return rszfile.ValueS16(num)
		}
	case schema.TypeU16:
		if isNum {
			return rszfile.ValueU16(num)
		}
	case schema.TypeS32:
		if isNum {
			return rszfile.ValueS32(num)
		}
	case schema.TypeU32:
		if isNum {
			return rszfile.ValueU32(num)
		}
	case schema.TypeS64:
		if isStr {
			if n, err := strconv.ParseInt(str, 10, 64); err == nil {
				return rszfile.ValueS64(n)
			}
		}
	case schema.TypeU64:
		if isStr {
			if n, err := strconv.ParseUint(str, 10, 64); err == nil {
				return rszfile.ValueU64(n)
			}
		}
	case schema.TypeF16:
		if isNum {
			return rszfile.ValueF16(float16.Frombits(uint16(num)))
		}
	case schema.TypeF32:
		if isNum {
			return rszfile.ValueF32(num)
		}
	case schema.TypeF64:
		if isNum {
			return rszfile.ValueF64(num)
		}
	case schema.TypeString:
		if isStr {
			return rszfile.ValueString(str)
		}
	case schema.TypeResource:
		if isStr {
			return rszfile.ValueResource(str)
		}
	case schema.TypeGUID, schema.TypeURI:
		if isStr {
			if id, err := uuid.Parse(str); err == nil {
				if typ == schema.TypeGUID {
					return rszfile.ValueGUID(id)
				}
				return rszfile.ValueURI(id)
			}
		}
	case schema.TypeGameObjectRef:
		var guid, target string
		if !indexJSON(ivalue, "guid", &guid) {
			return nil
		}
		var ref rszfile.ValueGameObjectRef
		var err error
		if ref.GUID, err = uuid.Parse(guid); err != nil {
			return nil
		}
		if indexJSON(ivalue, "target", &target) {
			if ref.Target, err = uuid.Parse(target); err != nil {
				return nil
			}
		}
		return ref
	case schema.TypeSfix:
		if isNum {
			return rszfile.ValueSfix(num)
		}
	case schema.TypePosition:
		if f, ok := numbers(ivalue, 3); ok {
			return rszfile.ValuePosition{f[0], f[1], f[2]}
		}
	default:
		return vectorFromJSON(typ, ivalue)
	}
	return nil
}

var vectorSizes = map[schema.FieldType]int{
	schema.TypeVec2:       2,
	schema.TypeVec3:       3,
	schema.TypeVec4:       4,
	schema.TypeFloat2:     2,
	schema.TypeFloat3:     3,
	schema.TypeFloat4:     4,
	schema.TypePoint:      2,
	schema.TypeSize:       2,
	schema.TypeRect:       4,
	schema.TypeQuaternion: 4,
	schema.TypeColor:      4,
	schema.TypeAABB:       8,
	schema.TypeRange:      2,
	schema.TypeRangeI:     2,
	schema.TypeInt2:       2,
	schema.TypeInt3:       3,
	schema.TypeInt4:       4,
	schema.TypeUint2:      2,
	schema.TypeUint3:      3,
	schema.TypeMat4:       16,
	schema.TypeSphere:     4,
	schema.TypeCapsule:    7,
	schema.TypeOBB:        19,
	schema.TypeSfix2:      2,
	schema.TypeSfix3:      3,
	schema.TypeSfix4:      4,
}

func vectorFromJSON(typ schema.FieldType, ivalue interface{}) rszfile.Value {
	size, ok := vectorSizes[typ]
	if !ok {
		return nil
	}
	f, ok := numbers(ivalue, size)
	if !ok {
		return nil
	}
	n := f32s(f)
	i := func(k int) int32 { return int32(f[k]) }
	u := func(k int) uint32 { return uint32(f[k]) }
	switch typ {
	case schema.TypeVec2:
		return rszfile.ValueVec2{n[0], n[1]}
	case schema.TypeVec3:
		return rszfile.ValueVec3{n[0], n[1], n[2]}
	case schema.TypeVec4:
		return rszfile.ValueVec4{n[0], n[1], n[2], n[3]}
	case schema.TypeFloat2:
		return rszfile.ValueFloat2{n[0], n[1]}
	case schema.TypeFloat3:
		return rszfile.ValueFloat3{n[0], n[1], n[2]}
	case schema.TypeFloat4:
		return rszfile.ValueFloat4{n[0], n[1], n[2], n[3]}
	case schema.TypePoint:
		return rszfile.ValuePoint{n[0], n[1]}
	case schema.TypeSize:
		return rszfile.ValueSize{W: n[0], H: n[1]}
	case schema.TypeRect:
		var v rszfile.ValueRect
		copy(v.Start[:], n[0:2])
		copy(v.End[:], n[2:4])
		return v
	case schema.TypeQuaternion:
		var v rszfile.ValueQuaternion
		copy(v.V[:], n[0:3])
		v.W = n[3]
		return v
	case schema.TypeColor:
		return rszfile.ValueColor{R: uint8(f[0]), G: uint8(f[1]), B: uint8(f[2]), A: uint8(f[3])}
	case schema.TypeAABB:
		var v rszfile.ValueAABB
		copy(v.Min[:], n[0:4])
		copy(v.Max[:], n[4:8])
		return v
	case schema.TypeRange:
		return rszfile.ValueRange{Min: n[0], Max: n[1]}
	case schema.TypeRangeI:
		return rszfile.ValueRangeI{Min: i(0), Max: i(1)}
	case schema.TypeInt2:
		return rszfile.ValueInt2{i(0), i(1)}
	case schema.TypeInt3:
		return rszfile.ValueInt3{i(0), i(1), i(2)}
	case schema.TypeInt4:
		return rszfile.ValueInt4{i(0), i(1), i(2), i(3)}
	case schema.TypeUint2:
		return rszfile.ValueUint2{u(0), u(1)}
	case schema.TypeUint3:
		return rszfile.ValueUint3{u(0), u(1), u(2)}
	case schema.TypeMat4:
		var v rszfile.ValueMat4
		copy(v[:], n)
		return v
	case schema.TypeSphere:
		var v rszfile.ValueSphere
		copy(v.Center[:], n[0:3])
		v.Radius = n[3]
		return v
	case schema.TypeCapsule:
		var v rszfile.ValueCapsule
		copy(v.Start[:], n[0:3])
		copy(v.End[:], n[3:6])
		v.Radius = n[6]
		return v
	case schema.TypeOBB:
		var v rszfile.ValueOBB
		copy(v.Coord[:], n[0:16])
		copy(v.Extent[:], n[16:19])
		return v
	case schema.TypeSfix2:
		return rszfile.ValueSfix2{i(0), i(1)}
	case schema.TypeSfix3:
		return rszfile.ValueSfix3{i(0), i(1), i(2)}
	case schema.TypeSfix4:
		return rszfile.ValueSfix4{i(0), i(1), i(2), i(3)}
	}
	return nil
}
