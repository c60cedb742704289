// Package testschema provides a small schema shared by tests.
package testschema

import (
	"github.com/rszkit/rszfile/schema"
)

// Game uses external userdata. EmbeddedGame embeds userdata as nested RSZ
// blocks.
const (
	Game         = schema.GameRE4
	EmbeddedGame = schema.GameRE2
)

// Property ids of the GameObjectRef fields of app.RefHolder.
const (
	TargetProperty  int32 = 0x2A10
	TargetsProperty int32 = 0x2A11
)

func f(name string, typ schema.FieldType, align, size int) schema.Field {
	return schema.Field{Name: name, Type: typ, Align: align, Size: size}
}

func arr(name string, typ schema.FieldType, align, size int) schema.Field {
	return schema.Field{Name: name, Type: typ, Align: align, Size: size, Array: true}
}

// Classes returns new copies of the test classes.
func Classes() []*schema.Class {
	return []*schema.Class{
		{Name: "via.Folder", TypeID: 0x1000_0001, CRC: 0xA1, Fields: []schema.Field{
			f("Name", schema.TypeString, 4, 4),
			f("Tag", schema.TypeString, 4, 4),
			f("Active", schema.TypeBool, 1, 1),
			f("Path", schema.TypeString, 4, 4),
		}},
		{Name: "via.GameObject", TypeID: 0x1000_0002, CRC: 0xA2, Fields: []schema.Field{
			f("Name", schema.TypeString, 4, 4),
			f("Tag", schema.TypeString, 4, 4),
			f("DrawSelf", schema.TypeBool, 1, 1),
			f("UpdateSelf", schema.TypeBool, 1, 1),
			f("TimeScale", schema.TypeF32, 4, 4),
		}},
		{Name: "via.Transform", TypeID: 0x1000_0003, CRC: 0xA3, Fields: []schema.Field{
			f("LocalPosition", schema.TypeVec3, 16, 16),
			f("LocalRotation", schema.TypeQuaternion, 16, 16),
			f("LocalScale", schema.TypeVec3, 16, 16),
		}},
		{Name: "via.render.Mesh", TypeID: 0x1000_0004, CRC: 0xA4, Fields: []schema.Field{
			f("Mesh", schema.TypeResource, 4, 4),
			f("Material", schema.TypeResource, 4, 4),
			f("Enabled", schema.TypeBool, 1, 1),
		}},
		{Name: "app.RefHolder", TypeID: 0x2000_0001, CRC: 0xB1, Fields: []schema.Field{
			f("Target", schema.TypeGameObjectRef, 8, 16),
			arr("Targets", schema.TypeGameObjectRef, 8, 16),
		}},
		{Name: "app.Holder", TypeID: 0x2000_0002, CRC: 0xB2, Fields: []schema.Field{
			f("Child", schema.TypeObject, 4, 4),
			arr("Children", schema.TypeObject, 4, 4),
			f("Params", schema.TypeUserData, 4, 4),
			f("Count", schema.TypeS32, 4, 4),
		}},
		{Name: "app.Child", TypeID: 0x2000_0003, CRC: 0xB3, Fields: []schema.Field{
			f("Value", schema.TypeF32, 4, 4),
			f("Label", schema.TypeString, 4, 4),
		}},
		{Name: "app.Params", TypeID: 0x2000_0004, CRC: 0xB4, Fields: []schema.Field{
			f("Speed", schema.TypeF32, 4, 4),
			f("Scale", schema.TypeVec3, 16, 16),
		}},
		{Name: "app.AllTypes", TypeID: 0x2000_0005, CRC: 0xB5, Fields: []schema.Field{
			f("Raw", schema.TypeData, 1, 3),
			f("Bool", schema.TypeBool, 1, 1),
			f("S8", schema.TypeS8, 1, 1),
			f("U8", schema.TypeU8, 1, 1),
			f("S16", schema.TypeS16, 2, 2),
			f("U16", schema.TypeU16, 2, 2),
			f("S32", schema.TypeS32, 4, 4),
			f("U32", schema.TypeU32, 4, 4),
			f("S64", schema.TypeS64, 8, 8),
			f("U64", schema.TypeU64, 8, 8),
			f("F16", schema.TypeF16, 2, 2),
			f("F32", schema.TypeF32, 4, 4),
			f("F64", schema.TypeF64, 8, 8),
			f("String", schema.TypeString, 4, 4),
			f("Resource", schema.TypeResource, 4, 4),
			f("Guid", schema.TypeGUID, 8, 16),
			f("Uri", schema.TypeURI, 8, 16),
			f("Vec2", schema.TypeVec2, 16, 16),
			f("Vec3", schema.TypeVec3, 16, 16),
			f("Vec4", schema.TypeVec4, 16, 16),
			f("Float2", schema.TypeFloat2, 4, 8),
			f("Float3", schema.TypeFloat3, 4, 12),
			f("Float4", schema.TypeFloat4, 4, 16),
			f("Point", schema.TypePoint, 4, 8),
			f("Size", schema.TypeSize, 4, 8),
			f("Rect", schema.TypeRect, 4, 16),
			f("Quaternion", schema.TypeQuaternion, 16, 16),
			f("Color", schema.TypeColor, 4, 4),
			f("AABB", schema.TypeAABB, 16, 32),
			f("Range", schema.TypeRange, 4, 8),
			f("RangeI", schema.TypeRangeI, 4, 8),
			f("Int2", schema.TypeInt2, 4, 8),
			f("Int3", schema.TypeInt3, 4, 12),
			f("Int4", schema.TypeInt4, 4, 16),
			f("Uint2", schema.TypeUint2, 4, 8),
			f("Uint3", schema.TypeUint3, 4, 12),
			f("Mat4", schema.TypeMat4, 16, 64),
			f("Position", schema.TypePosition, 8, 24),
			f("Sphere", schema.TypeSphere, 16, 16),
			f("Capsule", schema.TypeCapsule, 16, 48),
			f("OBB", schema.TypeOBB, 16, 80),
			f("Sfix", schema.TypeSfix, 4, 4),
			f("Sfix2", schema.TypeSfix2, 4, 8),
			f("Sfix3", schema.TypeSfix3, 4, 12),
			f("Sfix4", schema.TypeSfix4, 4, 16),
			arr("Floats", schema.TypeF32, 4, 4),
			arr("Names", schema.TypeString, 4, 4),
		}},
	}
}

// Database returns a new database of the test classes for game.
func Database(game schema.Game) *schema.Database {
	db := schema.NewDatabase(game, Classes()...)
	db.SetRefProperty("app.RefHolder", "Target", TargetProperty)
	db.SetRefProperty("app.RefHolder", "Targets", TargetsProperty)
	return db
}

// Service returns a schema service for Game and EmbeddedGame.
func Service() *schema.Cache {
	return schema.NewStaticCache(Database(Game), Database(EmbeddedGame))
}

// Profile returns the profile of game.
func Profile(game schema.Game) schema.Profile {
	p, err := schema.LookupProfile(game)
	if err != nil {
		panic(err)
	}
	return p
}
