package declare

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

func normFloat64(v interface{}) float64 {
	switch v := v.(type) {
	case int:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

func normInt64(v interface{}) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func normFloat32(v interface{}) float32 {
	return float32(normFloat64(v))
}

func normInt32(v interface{}) int32 {
	return int32(normInt64(v))
}

func normUint32(v interface{}) uint32 {
	return uint32(normInt64(v))
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, uint, uint8, uint16, uint32, uint64, int8, int16, int32, int64, float32, float64:
		return true
	}
	return false
}

// numbers returns whether v holds at least n numbers.
func numbers(v []interface{}, n int) bool {
	if len(v) < n {
		return false
	}
	for _, x := range v[:n] {
		if !isNumber(x) {
			return false
		}
	}
	return true
}

func floats(v []interface{}) []float32 {
	f := make([]float32, len(v))
	for i, x := range v {
		f[i] = normFloat32(x)
	}
	return f
}

func sfix(v interface{}) int32 {
	return int32(rszfile.NewValueSfix(normFloat64(v)))
}

func toUUID(v interface{}) (uuid.UUID, bool) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, true
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	}
	return uuid.Nil, false
}

func toString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// field converts the values of a property to the value of field f.
func (s *state) field(f schema.Field, v []interface{}) rszfile.Value {
	if !f.Array {
		return s.value(f, v)
	}
	if len(v) == 1 {
		if a, ok := v[0].(*rszfile.ValueArray); ok && a.Elem == f.Type {
			return a
		}
	}
	a := rszfile.NewArray(f.Type)
	for _, e := range v {
		if group, ok := e.([]interface{}); ok {
			a.Append(s.value(f, group))
		} else {
			a.Append(s.value(f, []interface{}{e}))
		}
	}
	return a
}

// value converts values to a single value of the type of f.
func (s *state) value(f schema.Field, v []interface{}) rszfile.Value {
	if len(v) == 0 {
		return rszfile.NewValue(f.Type, f.Size)
	}
	if val, ok := v[0].(rszfile.Value); ok {
		if _, isArray := val.(*rszfile.ValueArray); !isArray && val.Type() == f.Type {
			return val
		}
	}

	switch f.Type {
	case schema.TypeData:
		if b, ok := v[0].([]byte); ok {
			d := make(rszfile.ValueData, f.Size)
			copy(d, b)
			return d
		}
	case schema.TypeObject:
		switch o := v[0].(type) {
		case object:
			return rszfile.ValueObject{Object: s.object(o.className, o.properties)}
		case *rszfile.Object:
			return rszfile.ValueObject{Object: o}
		}
	case schema.TypeBool:
		if b, ok := v[0].(bool); ok {
			return rszfile.ValueBool(b)
		}
	case schema.TypeS8:
		return rszfile.ValueS8(normInt64(v[0]))
	case schema.TypeU8:
		return rszfile.ValueU8(normInt64(v[0]))
	case schema.TypeS16:
		return rszfile.ValueS16(normInt64(v[0]))
	case schema.TypeU16:
		return rszfile.ValueU16(normInt64(v[0]))
	case schema.TypeS32:
		return rszfile.ValueS32(normInt64(v[0]))
	case schema.TypeU32:
		return rszfile.ValueU32(normInt64(v[0]))
	case schema.TypeS64:
		return rszfile.ValueS64(normInt64(v[0]))
	case schema.TypeU64:
		if u, ok := v[0].(uint64); ok {
			return rszfile.ValueU64(u)
		}
		return rszfile.ValueU64(normInt64(v[0]))
	case schema.TypeF16:
		return rszfile.NewValueF16(normFloat32(v[0]))
	case schema.TypeF32:
		return rszfile.ValueF32(normFloat32(v[0]))
	case schema.TypeF64:
		return rszfile.ValueF64(normFloat64(v[0]))
	case schema.TypeSfix:
		return rszfile.NewValueSfix(normFloat64(v[0]))
	case schema.TypeString:
		if str, ok := toString(v[0]); ok {
			return rszfile.ValueString(str)
		}
	case schema.TypeResource:
		if str, ok := toString(v[0]); ok {
			return rszfile.ValueResource(str)
		}
	case schema.TypeGUID:
		if id, ok := toUUID(v[0]); ok {
			return rszfile.ValueGUID(id)
		}
	case schema.TypeURI:
		if id, ok := toUUID(v[0]); ok {
			return rszfile.ValueURI(id)
		}
	case schema.TypeGameObjectRef:
		switch r := v[0].(type) {
		case string:
			if g := s.refs[r]; g != nil {
				return rszfile.ValueGameObjectRef{GUID: g.ID, Target: g.ID}
			}
		case *rszfile.GameObject:
			return rszfile.ValueGameObjectRef{GUID: r.ID, Target: r.ID}
		case uuid.UUID:
			return rszfile.ValueGameObjectRef{GUID: r}
		}
	case schema.TypeVec2, schema.TypeFloat2, schema.TypePoint, schema.TypeSize, schema.TypeRange:
		if numbers(v, 2) {
			x, y := normFloat32(v[0]), normFloat32(v[1])
			switch f.Type {
			case schema.TypeVec2:
				return rszfile.ValueVec2{x, y}
			case schema.TypeFloat2:
				return rszfile.ValueFloat2{x, y}
			case schema.TypePoint:
				return rszfile.ValuePoint{x, y}
			case schema.TypeSize:
				return rszfile.ValueSize{W: x, H: y}
			default:
				return rszfile.ValueRange{Min: x, Max: y}
			}
		}
	case schema.TypeVec3, schema.TypeFloat3:
		if numbers(v, 3) {
			vec := mgl32.Vec3{normFloat32(v[0]), normFloat32(v[1]), normFloat32(v[2])}
			if f.Type == schema.TypeVec3 {
				return rszfile.ValueVec3(vec)
			}
			return rszfile.ValueFloat3(vec)
		}
	case schema.TypeVec4, schema.TypeFloat4:
		if numbers(v, 4) {
			vec := mgl32.Vec4{normFloat32(v[0]), normFloat32(v[1]), normFloat32(v[2]), normFloat32(v[3])}
			if f.Type == schema.TypeVec4 {
				return rszfile.ValueVec4(vec)
			}
			return rszfile.ValueFloat4(vec)
		}
	case schema.TypeRect:
		if numbers(v, 4) {
			return rszfile.ValueRect{
				Start: mgl32.Vec2{normFloat32(v[0]), normFloat32(v[1])},
				End:   mgl32.Vec2{normFloat32(v[2]), normFloat32(v[3])},
			}
		}
	case schema.TypeQuaternion:
		if numbers(v, 4) {
			return rszfile.ValueQuaternion(mgl32.Quat{
				V: mgl32.Vec3{normFloat32(v[0]), normFloat32(v[1]), normFloat32(v[2])},
				W: normFloat32(v[3]),
			})
		}
	case schema.TypeColor:
		if numbers(v, 3) {
			c := rszfile.ValueColor{R: uint8(normInt64(v[0])), G: uint8(normInt64(v[1])), B: uint8(normInt64(v[2])), A: 255}
			if numbers(v, 4) {
				c.A = uint8(normInt64(v[3]))
			}
			return c
		}
	case schema.TypeAABB:
		if numbers(v, 6) {
			n := floats(v[:6])
			return rszfile.ValueAABB{
				Min: mgl32.Vec4{n[0], n[1], n[2], 0},
				Max: mgl32.Vec4{n[3], n[4], n[5], 0},
			}
		}
	case schema.TypeRangeI:
		if numbers(v, 2) {
			return rszfile.ValueRangeI{Min: normInt32(v[0]), Max: normInt32(v[1])}
		}
	case schema.TypeInt2:
		if numbers(v, 2) {
			return rszfile.ValueInt2{normInt32(v[0]), normInt32(v[1])}
		}
	case schema.TypeInt3:
		if numbers(v, 3) {
			return rszfile.ValueInt3{normInt32(v[0]), normInt32(v[1]), normInt32(v[2])}
		}
	case schema.TypeInt4:
		if numbers(v, 4) {
			return rszfile.ValueInt4{normInt32(v[0]), normInt32(v[1]), normInt32(v[2]), normInt32(v[3])}
		}
	case schema.TypeUint2:
		if numbers(v, 2) {
			return rszfile.ValueUint2{normUint32(v[0]), normUint32(v[1])}
		}
	case schema.TypeUint3:
		if numbers(v, 3) {
			return rszfile.ValueUint3{normUint32(v[0]), normUint32(v[1]), normUint32(v[2])}
		}
	case schema.TypeMat4:
		if numbers(v, 16) {
			var m mgl32.Mat4
			copy(m[:], floats(v[:16]))
			return rszfile.ValueMat4(m)
		}
	case schema.TypePosition:
		if numbers(v, 3) {
			return rszfile.ValuePosition{normFloat64(v[0]), normFloat64(v[1]), normFloat64(v[2])}
		}
	case schema.TypeSphere:
		if numbers(v, 4) {
			n := floats(v[:4])
			return rszfile.ValueSphere{Center: mgl32.Vec3{n[0], n[1], n[2]}, Radius: n[3]}
		}
	case schema.TypeCapsule:
		if numbers(v, 7) {
			n := floats(v[:7])
			return rszfile.ValueCapsule{
				Start:  mgl32.Vec3{n[0], n[1], n[2]},
				End:    mgl32.Vec3{n[3], n[4], n[5]},
				Radius: n[6],
			}
		}
	case schema.TypeOBB:
		if numbers(v, 19) {
			n := floats(v[:19])
			var obb rszfile.ValueOBB
			copy(obb.Coord[:], n[:16])
			copy(obb.Extent[:], n[16:])
			return obb
		}
	case schema.TypeSfix2:
		if numbers(v, 2) {
			return rszfile.ValueSfix2{sfix(v[0]), sfix(v[1])}
		}
	case schema.TypeSfix3:
		if numbers(v, 3) {
			return rszfile.ValueSfix3{sfix(v[0]), sfix(v[1]), sfix(v[2])}
		}
	case schema.TypeSfix4:
		if numbers(v, 4) {
			return rszfile.ValueSfix4{sfix(v[0]), sfix(v[1]), sfix(v[2]), sfix(v[3])}
		}
	}
	return rszfile.NewValue(f.Type, f.Size)
}
