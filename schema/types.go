package schema

import "strings"

// FieldType is the value tag of a field, as named by the schema dumps.
type FieldType byte

const (
	TypeData FieldType = iota // Raw blob of the field's declared size.
	TypeObject
	TypeUserData
	TypeBool
	TypeS8
	TypeU8
	TypeS16
	TypeU16
	TypeS32
	TypeU32
	TypeS64
	TypeU64
	TypeF16
	TypeF32
	TypeF64
	TypeString
	TypeResource
	TypeGUID
	TypeURI
	TypeGameObjectRef
	TypeVec2
	TypeVec3
	TypeVec4
	TypeFloat2
	TypeFloat3
	TypeFloat4
	TypePoint
	TypeSize
	TypeRect
	TypeQuaternion
	TypeColor
	TypeAABB
	TypeRange
	TypeRangeI
	TypeInt2
	TypeInt3
	TypeInt4
	TypeUint2
	TypeUint3
	TypeMat4
	TypePosition
	TypeSphere
	TypeCapsule
	TypeOBB
	TypeSfix
	TypeSfix2
	TypeSfix3
	TypeSfix4
	typeCount
)

var typeStrings = [typeCount]string{
	TypeData:          "Data",
	TypeObject:        "Object",
	TypeUserData:      "UserData",
	TypeBool:          "Bool",
	TypeS8:            "S8",
	TypeU8:            "U8",
	TypeS16:           "S16",
	TypeU16:           "U16",
	TypeS32:           "S32",
	TypeU32:           "U32",
	TypeS64:           "S64",
	TypeU64:           "U64",
	TypeF16:           "F16",
	TypeF32:           "F32",
	TypeF64:           "F64",
	TypeString:        "String",
	TypeResource:      "Resource",
	TypeGUID:          "Guid",
	TypeURI:           "Uri",
	TypeGameObjectRef: "GameObjectRef",
	TypeVec2:          "Vec2",
	TypeVec3:          "Vec3",
	TypeVec4:          "Vec4",
	TypeFloat2:        "Float2",
	TypeFloat3:        "Float3",
	TypeFloat4:        "Float4",
	TypePoint:         "Point",
	TypeSize:          "Size",
	TypeRect:          "Rect",
	TypeQuaternion:    "Quaternion",
	TypeColor:         "Color",
	TypeAABB:          "AABB",
	TypeRange:         "Range",
	TypeRangeI:        "RangeI",
	TypeInt2:          "Int2",
	TypeInt3:          "Int3",
	TypeInt4:          "Int4",
	TypeUint2:         "Uint2",
	TypeUint3:         "Uint3",
	TypeMat4:          "Mat4",
	TypePosition:      "Position",
	TypeSphere:        "Sphere",
	TypeCapsule:       "Capsule",
	TypeOBB:           "OBB",
	TypeSfix:          "Sfix",
	TypeSfix2:         "Sfix2",
	TypeSfix3:         "Sfix3",
	TypeSfix4:         "Sfix4",
}

// String returns the schema name of the type.
func (t FieldType) String() string {
	if t < typeCount {
		return typeStrings[t]
	}
	return "Invalid"
}

// IsReference returns whether values of the type are instance-table
// indices.
func (t FieldType) IsReference() bool {
	return t == TypeObject || t == TypeUserData
}

// IsString returns whether values of the type are length-prefixed UTF-16
// strings.
func (t FieldType) IsString() bool {
	return t == TypeString || t == TypeResource
}

// FieldTypeFromString returns the type named s, case-insensitively. Names
// that are not known yield TypeData so that unknown fields are carried as
// raw bytes.
func FieldTypeFromString(s string) FieldType {
	for t, name := range typeStrings {
		if strings.EqualFold(name, s) {
			return FieldType(t)
		}
	}
	return TypeData
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	*t = FieldTypeFromString(string(b))
	return nil
}
