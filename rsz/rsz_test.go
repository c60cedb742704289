package rsz_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/testschema"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newObject(t *testing.T, db *schema.Database, class string) *rszfile.Object {
	t.Helper()
	c := db.Class(class)
	require.NotNil(t, c, class)
	return rszfile.NewObject(c)
}

// encode builds a table with root as the only object and encodes it.
func encode(t *testing.T, game schema.Game, roots ...*rszfile.Object) []byte {
	t.Helper()
	db := testschema.Database(game)
	profile := testschema.Profile(game)
	b := rsz.NewBuilder(db, profile.RSZVersion)
	for _, root := range roots {
		ref, err := b.Object(root)
		require.NoError(t, err)
		b.AddObject(ref)
	}
	data, err := rsz.Encoder{Profile: profile}.Encode(b.Table())
	require.NoError(t, err)
	return data
}

// decode decodes data and resolves every object of its object table.
func decode(t *testing.T, game schema.Game, data []byte) (*rsz.Table, []*rszfile.Object) {
	t.Helper()
	table, err := rsz.Decoder{Schema: testschema.Database(game), Profile: testschema.Profile(game)}.Decode(data)
	require.NoError(t, err)
	r := rsz.NewResolver(table)
	objs := make([]*rszfile.Object, len(table.Objects))
	for i, ref := range table.Objects {
		objs[i], err = r.Object(ref)
		require.NoError(t, err)
	}
	return table, objs
}

func TestRoundTripAllTypes(t *testing.T) {
	db := testschema.Database(testschema.Game)
	obj := newObject(t, db, "app.AllTypes")
	obj.Set("Raw", rszfile.ValueData{1, 2, 3})
	obj.Set("Bool", rszfile.ValueBool(true))
	obj.Set("S8", rszfile.ValueS8(-8))
	obj.Set("U8", rszfile.ValueU8(8))
	obj.Set("S16", rszfile.ValueS16(-16))
	obj.Set("U16", rszfile.ValueU16(16))
	obj.Set("S32", rszfile.ValueS32(-32))
	obj.Set("U32", rszfile.ValueU32(32))
	obj.Set("S64", rszfile.ValueS64(-64))
	obj.Set("U64", rszfile.ValueU64(64))
	obj.Set("F16", rszfile.NewValueF16(1.5))
	obj.Set("F32", rszfile.ValueF32(3.25))
	obj.Set("F64", rszfile.ValueF64(6.125))
	obj.Set("String", rszfile.ValueString("héllo"))
	obj.Set("Resource", rszfile.ValueResource("art/model.mesh"))
	obj.Set("Guid", rszfile.ValueGUID(uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")))
	obj.Set("Uri", rszfile.ValueURI(uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")))
	obj.Set("Vec2", rszfile.ValueVec2{1, 2})
	obj.Set("Vec3", rszfile.ValueVec3{1, 2, 3})
	obj.Set("Vec4", rszfile.ValueVec4{1, 2, 3, 4})
	obj.Set("Float2", rszfile.ValueFloat2{5, 6})
	obj.Set("Float3", rszfile.ValueFloat3{5, 6, 7})
	obj.Set("Float4", rszfile.ValueFloat4{5, 6, 7, 8})
	obj.Set("Point", rszfile.ValuePoint{9, 10})
	obj.Set("Size", rszfile.ValueSize{W: 640, H: 480})
	obj.Set("Rect", rszfile.ValueRect{Start: mgl32.Vec2{0, 1}, End: mgl32.Vec2{2, 3}})
	obj.Set("Quaternion", rszfile.ValueQuaternion(mgl32.QuatIdent()))
	obj.Set("Color", rszfile.ValueColor{R: 255, G: 128, B: 64, A: 32})
	obj.Set("AABB", rszfile.ValueAABB{Min: mgl32.Vec4{-1, -1, -1, 0}, Max: mgl32.Vec4{1, 1, 1, 0}})
	obj.Set("Range", rszfile.ValueRange{Min: 0.5, Max: 2})
	obj.Set("RangeI", rszfile.ValueRangeI{Min: -3, Max: 3})
	obj.Set("Int2", rszfile.ValueInt2{-1, 1})
	obj.Set("Int3", rszfile.ValueInt3{-1, 0, 1})
	obj.Set("Int4", rszfile.ValueInt4{1, 2, 3, 4})
	obj.Set("Uint2", rszfile.ValueUint2{1, 2})
	obj.Set("Uint3", rszfile.ValueUint3{1, 2, 3})
	obj.Set("Mat4", rszfile.ValueMat4(mgl32.Ident4()))
	obj.Set("Position", rszfile.ValuePosition{1e9, -2e9, 3})
	obj.Set("Sphere", rszfile.ValueSphere{Center: mgl32.Vec3{1, 2, 3}, Radius: 4})
	obj.Set("Capsule", rszfile.ValueCapsule{Start: mgl32.Vec3{0, 0, 0}, End: mgl32.Vec3{0, 2, 0}, Radius: 0.5})
	obj.Set("OBB", rszfile.ValueOBB{Coord: mgl32.Translate3D(1, 2, 3), Extent: mgl32.Vec3{1, 1, 1}})
	obj.Set("Sfix", rszfile.NewValueSfix(1.5))
	obj.Set("Sfix2", rszfile.ValueSfix2{rszfile.SfixOne, -rszfile.SfixOne})
	obj.Set("Sfix3", rszfile.ValueSfix3{1, 2, 3})
	obj.Set("Sfix4", rszfile.ValueSfix4{1, 2, 3, 4})
	obj.Set("Floats", &rszfile.ValueArray{Elem: schema.TypeF32, Values: []rszfile.Value{
		rszfile.ValueF32(1), rszfile.ValueF32(2),
	}})
	obj.Set("Names", &rszfile.ValueArray{Elem: schema.TypeString, Values: []rszfile.Value{
		rszfile.ValueString("a"), rszfile.ValueString(""), rszfile.ValueString("ccc"),
	}})

	data := encode(t, testschema.Game, obj)
	_, objs := decode(t, testschema.Game, data)
	require.Len(t, objs, 1)
	assert.Equal(t, obj, objs[0])

	// Encoding the decoded object reproduces the same bytes.
	assert.Equal(t, data, encode(t, testschema.Game, objs[0]))
}

func TestHeaderLayout(t *testing.T) {
	db := testschema.Database(testschema.Game)
	data := encode(t, testschema.Game, newObject(t, db, "app.Child"), newObject(t, db, "app.Child"))

	assert.Equal(t, rsz.Magic, string(data[:4]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(data[8:])))
	assert.Equal(t, int32(3), int32(binary.LittleEndian.Uint32(data[12:])))
	instanceOffset := binary.LittleEndian.Uint64(data[0x18:])
	dataOffset := binary.LittleEndian.Uint64(data[0x20:])
	userdataOffset := binary.LittleEndian.Uint64(data[0x28:])
	assert.Equal(t, uint64(0x40), instanceOffset)
	assert.Equal(t, uint64(0x60), userdataOffset)
	assert.Equal(t, uint64(0x60), dataOffset)
	assert.Zero(t, dataOffset%16)
}

func TestSharedObjects(t *testing.T) {
	db := testschema.Database(testschema.Game)
	shared := newObject(t, db, "app.Child")
	shared.Set("Label", rszfile.ValueString("shared"))
	other := newObject(t, db, "app.Child")
	holder := newObject(t, db, "app.Holder")
	holder.Set("Child", rszfile.ValueObject{Object: shared})
	holder.Set("Children", &rszfile.ValueArray{Elem: schema.TypeObject, Values: []rszfile.Value{
		rszfile.ValueObject{Object: shared},
		rszfile.ValueObject{Object: other},
	}})

	data := encode(t, testschema.Game, holder)
	table, objs := decode(t, testschema.Game, data)

	// null, shared, other, holder
	require.Len(t, table.Instances, 4)
	assert.Equal(t, []rsz.Ref{3}, table.Objects)
	assert.Equal(t, "app.Child", table.Instances[1].ClassName())
	assert.Equal(t, "app.Holder", table.Instances[3].ClassName())

	got := objs[0]
	child := got.Get("Child").(rszfile.ValueObject).Object
	children := got.Get("Children").(*rszfile.ValueArray)
	require.Len(t, children.Values, 2)
	assert.Same(t, child, children.Values[0].(rszfile.ValueObject).Object)
	assert.NotSame(t, child, children.Values[1].(rszfile.ValueObject).Object)
	assert.Equal(t, "shared", child.GetString("Label"))
}

func TestNullReferences(t *testing.T) {
	db := testschema.Database(testschema.Game)
	holder := newObject(t, db, "app.Holder")

	data := encode(t, testschema.Game, holder)
	table, objs := decode(t, testschema.Game, data)
	require.Len(t, table.Instances, 2)
	assert.Equal(t, rsz.Ref(0), table.Instances[1].Values[0])
	assert.Equal(t, rszfile.ValueObject{}, objs[0].Get("Child"))
	assert.Equal(t, rszfile.ValueUserData{}, objs[0].Get("Params"))
}

func TestExternalUserData(t *testing.T) {
	db := testschema.Database(testschema.Game)
	params := rszfile.ValueUserData{ClassName: "app.Params", Path: "app/params/fast.user"}
	a := newObject(t, db, "app.Holder")
	a.Set("Params", params)
	b := newObject(t, db, "app.Holder")
	b.Set("Params", params)

	data := encode(t, testschema.Game, a, b)
	table, objs := decode(t, testschema.Game, data)

	refs := table.UserDataRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, "app/params/fast.user", table.Instance(refs[0]).UserData.Path)
	assert.Nil(t, table.Instance(refs[0]).Values)
	for _, obj := range objs {
		assert.Equal(t, params, obj.Get("Params"))
	}
}

func TestEmbeddedUserData(t *testing.T) {
	game := testschema.EmbeddedGame
	db := testschema.Database(game)
	content := newObject(t, db, "app.Params")
	content.Set("Speed", rszfile.ValueF32(12))
	content.Set("Scale", rszfile.ValueVec3{2, 2, 2})
	holder := newObject(t, db, "app.Holder")
	holder.Set("Params", rszfile.ValueUserData{ClassName: "app.Params", Object: content})
	holder.Set("Count", rszfile.ValueS32(7))

	data := encode(t, game, holder)
	table, objs := decode(t, game, data)

	refs := table.UserDataRefs()
	require.Len(t, refs, 1)
	nested := table.Instance(refs[0]).UserData.Table
	require.NotNil(t, nested)
	assert.Len(t, nested.Objects, 1)

	got := objs[0].Get("Params").(rszfile.ValueUserData)
	assert.Equal(t, "app.Params", got.ClassName)
	assert.Equal(t, content, got.Object)
	assert.Equal(t, rszfile.ValueS32(7), objs[0].Get("Count"))
}

func TestDecodeErrors(t *testing.T) {
	db := testschema.Database(testschema.Game)
	profile := testschema.Profile(testschema.Game)
	data := encode(t, testschema.Game, newObject(t, db, "app.Child"))

	t.Run("version", func(t *testing.T) {
		p := profile
		p.RSZVersion++
		_, err := rsz.Decoder{Schema: db, Profile: p}.Decode(data)
		var verr rsz.ErrVersion
		require.True(t, errors.As(err, &verr), "%v", err)
		assert.Equal(t, profile.RSZVersion, verr.Got)
		assert.Equal(t, errors.KindSchema, errors.KindOf(err))
	})

	t.Run("signature", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[0] = 'X'
		_, err := rsz.Decoder{Schema: db, Profile: profile}.Decode(bad)
		assert.ErrorIs(t, err, rsz.ErrInvalidSig)
	})

	t.Run("crc", func(t *testing.T) {
		classes := testschema.Classes()
		for _, c := range classes {
			if c.Name == "app.Child" {
				c.CRC = 0xFFFF
			}
		}
		_, err := rsz.Decoder{Schema: schema.NewDatabase(testschema.Game, classes...), Profile: profile}.Decode(data)
		var cerr rsz.ErrCRC
		require.True(t, errors.As(err, &cerr), "%v", err)
		assert.Equal(t, "app.Child", cerr.Class)
		assert.Equal(t, uint32(0xB3), cerr.Got)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := rsz.Decoder{Schema: schema.NewDatabase(testschema.Game), Profile: profile}.Decode(data)
		var uerr rsz.ErrUnknownType
		require.True(t, errors.As(err, &uerr), "%v", err)
		assert.Equal(t, rsz.ErrUnknownType(0x2000_0003), uerr)
	})

	t.Run("trailing data", func(t *testing.T) {
		padded := append(append([]byte{}, data...), 0, 0, 0, 0)
		_, err := rsz.Decoder{Schema: db, Profile: profile}.Decode(padded)
		assert.NoError(t, err)

		trailing := append(append([]byte{}, data...), 0, 1)
		_, err = rsz.Decoder{Schema: db, Profile: profile}.Decode(trailing)
		assert.ErrorIs(t, err, rsz.ErrTrailingData)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := rsz.Decoder{Schema: db, Profile: profile}.Decode(data[:len(data)-2])
		assert.Error(t, err)
		_, err = rsz.Decoder{Schema: db, Profile: profile}.Decode(data[:8])
		assert.ErrorIs(t, err, rsz.ErrCorruptHeader)
	})
}

func TestDecodeCorruptUserData(t *testing.T) {
	game := testschema.EmbeddedGame
	db := testschema.Database(game)
	dec := rsz.Decoder{Schema: db, Profile: testschema.Profile(game)}
	holder := newObject(t, db, "app.Holder")
	holder.Set("Params", rszfile.ValueUserData{ClassName: "app.Params", Object: newObject(t, db, "app.Params")})
	data := encode(t, game, holder)
	udOffset := int(binary.LittleEndian.Uint64(data[0x28:]))
	size := binary.LittleEndian.Uint32(data[udOffset+12:])
	nestedOffset := binary.LittleEndian.Uint64(data[udOffset+16:])
	_, err := dec.Decode(data)
	require.NoError(t, err)

	for _, tt := range []struct {
		name   string
		size   uint32
		offset uint64
	}{
		{"whole block", uint32(len(data)), 0},
		{"enclosing block", size, 0},
		{"userdata infos", size, uint64(udOffset)},
		{"past end", size, uint64(len(data)) + 1},
		{"size past end", 0xFFFFFFFF, nestedOffset},
		{"offset overflow", size, ^uint64(0) - 2},
	} {
		t.Run(tt.name, func(t *testing.T) {
			bad := append([]byte{}, data...)
			binary.LittleEndian.PutUint32(bad[udOffset+12:], tt.size)
			binary.LittleEndian.PutUint64(bad[udOffset+16:], tt.offset)
			var err error
			require.NotPanics(t, func() { _, err = dec.Decode(bad) })
			assert.ErrorIs(t, err, rsz.ErrCorruptHeader)
			assert.Equal(t, errors.KindSchema, errors.KindOf(err))
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		db := testschema.Database(testschema.Game)
		a := newObject(t, db, "app.Holder")
		a.Set("Params", rszfile.ValueUserData{ClassName: "app.Params", Path: "app/params/a.user"})
		b := newObject(t, db, "app.Holder")
		b.Set("Params", rszfile.ValueUserData{ClassName: "app.Params", Path: "app/params/b.user"})
		data := encode(t, testschema.Game, a, b)
		udOffset := int(binary.LittleEndian.Uint64(data[0x28:]))
		require.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(data[0x10:])))

		bad := append([]byte{}, data...)
		copy(bad[udOffset+16:udOffset+20], bad[udOffset:udOffset+4])
		_, err := rsz.Decoder{Schema: db, Profile: testschema.Profile(testschema.Game)}.Decode(bad)
		assert.ErrorIs(t, err, rsz.ErrDuplicateUserData)
		assert.Equal(t, errors.KindSchema, errors.KindOf(err))
	})
}

func TestBuilderErrors(t *testing.T) {
	db := testschema.Database(testschema.Game)

	t.Run("cycle", func(t *testing.T) {
		holder := newObject(t, db, "app.Holder")
		holder.Set("Child", rszfile.ValueObject{Object: holder})
		_, err := rsz.NewBuilder(db, 16).Object(holder)
		assert.ErrorIs(t, err, rsz.ErrCycle)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := rsz.NewBuilder(db, 16).Object(&rszfile.Object{ClassName: "app.Missing"})
		assert.Error(t, err)
	})

	t.Run("field mismatch", func(t *testing.T) {
		obj := newObject(t, db, "app.Child")
		obj.Set("Extra", rszfile.ValueS32(1))
		_, err := rsz.NewBuilder(db, 16).Object(obj)
		var ierr rsz.InstanceError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, "app.Child", ierr.Class)
	})

	t.Run("value type", func(t *testing.T) {
		obj := newObject(t, db, "app.Child")
		obj.Set("Value", rszfile.ValueString("not a float"))
		b := rsz.NewBuilder(db, 16)
		ref, err := b.Object(obj)
		require.NoError(t, err)
		b.AddObject(ref)
		_, err = rsz.Encoder{Profile: testschema.Profile(testschema.Game)}.Encode(b.Table())
		var verr rsz.ErrValue
		require.True(t, errors.As(err, &verr), "%v", err)
		assert.Equal(t, "Value", verr.Field)
	})
}

func TestEncoderValidation(t *testing.T) {
	db := testschema.Database(testschema.Game)
	enc := rsz.Encoder{Profile: testschema.Profile(testschema.Game)}
	child := db.Class("app.Child")

	table := rsz.NewTable(16)
	table.Objects = []rsz.Ref{5}
	_, err := enc.Encode(table)
	assert.ErrorIs(t, err, rsz.ErrRefRange)

	table = rsz.NewTable(16)
	table.Instances[0] = &rsz.Instance{Class: child, Values: []rszfile.Value{rszfile.ValueF32(0), rszfile.ValueString("")}}
	_, err = enc.Encode(table)
	assert.ErrorIs(t, err, rsz.ErrNullInstance)

	table = rsz.NewTable(16)
	table.Append(&rsz.Instance{Class: child, Values: []rszfile.Value{rszfile.ValueF32(0)}})
	_, err = enc.Encode(table)
	assert.Error(t, err)

	holder := db.Class("app.Holder")
	table = rsz.NewTable(16)
	table.Append(&rsz.Instance{Class: holder, Values: []rszfile.Value{
		rsz.Ref(9),
		&rszfile.ValueArray{Elem: schema.TypeObject},
		rsz.Ref(0),
		rszfile.ValueS32(0),
	}})
	_, err = enc.Encode(table)
	assert.ErrorIs(t, err, rsz.ErrRefRange)
}

func TestDump(t *testing.T) {
	db := testschema.Database(testschema.Game)
	child := newObject(t, db, "app.Child")
	child.Set("Label", rszfile.ValueString("dumped"))
	data := encode(t, testschema.Game, child)

	var buf bytes.Buffer
	require.NoError(t, rsz.Decoder{Schema: db, Profile: testschema.Profile(testschema.Game)}.Dump(&buf, data))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Version: 16"))
	assert.Contains(t, out, "app.Child (type:20000003 crc:000000B3)")
	assert.Contains(t, out, "Label: (String) dumped")
}
