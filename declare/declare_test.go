package declare_test

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	. "github.com/rszkit/rszfile/declare"
	"github.com/rszkit/rszfile/graph"
	"github.com/rszkit/rszfile/internal/testschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Example() {
	db := testschema.Database(testschema.Game)
	root := Root{
		Folder("Environment",
			GameObject("Lamp", Ref("lamp"),
				Property("TimeScale", 1),
				Component("via.Transform",
					Property("LocalPosition", 0, 10, 0),
					Property("LocalScale", 2, 1.2, 4),
				),
				Component("via.render.Mesh",
					Property("Mesh", "env/lamp.mesh"),
				),
			),
		),
		GameObject("Switch",
			Component("app.RefHolder",
				Property("Target", "lamp"),
			),
		),
	}.Declare(db, rszfile.KindScene)
	for _, g := range root.GameObjects() {
		fmt.Println(g.Name(), len(g.Components()))
	}
	// Output:
	// Lamp 2
	// Switch 1
}

func TestDeclareScene(t *testing.T) {
	db := testschema.Database(testschema.Game)
	shared := rszfile.NewObject(db.Class("app.Child"))
	root := Root{
		Resource("first.mesh"),
		GameObject("Parent", Ref("parent"), Prefab("prefab/parent.pfb"),
			Component("app.RefHolder",
				Property("Target", "child"),
				Property("Targets", "parent", "child", "unknown"),
			),
			GameObject("Child", Ref("child"),
				Property("Tag", []byte("tagged")),
				Property("NotAField", 1),
				Component("app.Holder",
					Property("Child", Object("app.Child", Property("Value", 0.5), Property("Label", "a"))),
					Property("Children", shared, shared),
					Property("Params", UserData("app.Params", "user/params.user")),
					Property("Count", uint8(7)),
				),
			),
		),
	}.Declare(db, rszfile.KindScene)

	assert.Equal(t, testschema.Game, root.Meta.Game)
	assert.Equal(t, rszfile.KindScene, root.Meta.Kind)
	require.Len(t, root.Resources, 1)

	parent := root.Children()[0].(*rszfile.GameObject)
	assert.Equal(t, "prefab/parent.pfb", parent.Prefab)
	child := parent.Children()[0]
	assert.Equal(t, "Child", child.Name())
	assert.Equal(t, "tagged", child.Data.GetString("Tag"))
	assert.Equal(t, -1, child.Data.Index("NotAField"))

	refs := parent.GetComponent("app.RefHolder").Data
	assert.Equal(t, child.ID, refs.Get("Target").(rszfile.ValueGameObjectRef).ID())
	targets := refs.Get("Targets").(*rszfile.ValueArray)
	require.Equal(t, 3, targets.Len())
	assert.Equal(t, parent.ID, targets.Values[0].(rszfile.ValueGameObjectRef).ID())
	assert.Equal(t, child.ID, targets.Values[1].(rszfile.ValueGameObjectRef).ID())
	assert.True(t, targets.Values[2].(rszfile.ValueGameObjectRef).IsEmpty())

	holder := child.GetComponent("app.Holder").Data
	nested := holder.Get("Child").(rszfile.ValueObject).Object
	assert.Equal(t, rszfile.ValueF32(0.5), nested.Get("Value"))
	assert.Equal(t, "a", nested.GetString("Label"))
	children := holder.Get("Children").(*rszfile.ValueArray)
	assert.Same(t, shared, children.Values[0].(rszfile.ValueObject).Object)
	assert.Same(t, shared, children.Values[1].(rszfile.ValueObject).Object)
	assert.Equal(t, UserData("app.Params", "user/params.user"), holder.Get("Params"))
	assert.Equal(t, rszfile.ValueS32(7), holder.Get("Count"))

	c, err := (&graph.Flattener{Schema: testschema.Service()}).Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefab/parent.pfb"}, c.Prefabs)
}

func TestDeclareValues(t *testing.T) {
	db := testschema.Database(testschema.Game)
	id := uuid.MustParse("7c0b0a4e-2f43-4d54-9a7f-0e52b7c3a1d9")
	g := GameObject("Values",
		Component("app.AllTypes",
			Property("Raw", []byte{1, 2, 3, 4}),
			Property("Bool", true),
			Property("S8", -3),
			Property("U64", uint64(1<<63)),
			Property("F16", 1.5),
			Property("F64", float32(2.5)),
			Property("String", "text"),
			Property("Resource", "a.tex"),
			Property("Guid", id),
			Property("Uri", id.String()),
			Property("Vec2", 1, 2),
			Property("Float3", 1, 2, 3),
			Property("Vec4", 1, 2, 3),
			Property("Size", 4, 5),
			Property("Rect", 1, 2, 3, 4),
			Property("Quaternion", 0, 0, 0, 1),
			Property("Color", 10, 20, 30),
			Property("AABB", -1, -1, -1, 1, 1, 1),
			Property("RangeI", -2, 2),
			Property("Uint3", 1, 2, 3),
			Property("Position", 1e9, 2, 3),
			Property("Sphere", 0, 0, 0, 5),
			Property("Capsule", 0, 0, 0, 0, 1, 0, 0.5),
			Property("Sfix", 1.5),
			Property("Sfix2", 1, -1),
			Property("Floats", 1, 2.5, rszfile.ValueF32(3)),
			Property("Names", "a", []byte("b")),
		),
	).Declare(db)

	v := g.Components()[0].Data
	assert.Equal(t, rszfile.ValueData{1, 2, 3}, v.Get("Raw"))
	assert.Equal(t, rszfile.ValueBool(true), v.Get("Bool"))
	assert.Equal(t, rszfile.ValueS8(-3), v.Get("S8"))
	assert.Equal(t, rszfile.ValueU64(1<<63), v.Get("U64"))
	assert.Equal(t, float32(1.5), v.Get("F16").(rszfile.ValueF16).Float32())
	assert.Equal(t, rszfile.ValueF64(2.5), v.Get("F64"))
	assert.Equal(t, rszfile.ValueString("text"), v.Get("String"))
	assert.Equal(t, rszfile.ValueResource("a.tex"), v.Get("Resource"))
	assert.Equal(t, rszfile.ValueGUID(id), v.Get("Guid"))
	assert.Equal(t, rszfile.ValueURI(id), v.Get("Uri"))
	assert.Equal(t, rszfile.ValueVec2{1, 2}, v.Get("Vec2"))
	assert.Equal(t, rszfile.ValueFloat3{1, 2, 3}, v.Get("Float3"))
	assert.Equal(t, rszfile.ValueVec4{}, v.Get("Vec4"), "too few numbers")
	assert.Equal(t, rszfile.ValueSize{W: 4, H: 5}, v.Get("Size"))
	assert.Equal(t, rszfile.ValueRect{Start: mgl32.Vec2{1, 2}, End: mgl32.Vec2{3, 4}}, v.Get("Rect"))
	assert.Equal(t, rszfile.ValueQuaternion(mgl32.QuatIdent()), v.Get("Quaternion"))
	assert.Equal(t, rszfile.ValueColor{R: 10, G: 20, B: 30, A: 255}, v.Get("Color"))
	assert.Equal(t, rszfile.ValueAABB{Min: mgl32.Vec4{-1, -1, -1, 0}, Max: mgl32.Vec4{1, 1, 1, 0}}, v.Get("AABB"))
	assert.Equal(t, rszfile.ValueRangeI{Min: -2, Max: 2}, v.Get("RangeI"))
	assert.Equal(t, rszfile.ValueUint3{1, 2, 3}, v.Get("Uint3"))
	assert.Equal(t, rszfile.ValuePosition{1e9, 2, 3}, v.Get("Position"))
	assert.Equal(t, rszfile.ValueSphere{Radius: 5}, v.Get("Sphere"))
	assert.Equal(t, float32(0.5), v.Get("Capsule").(rszfile.ValueCapsule).Radius)
	assert.Equal(t, rszfile.ValueSfix(3*rszfile.SfixOne/2), v.Get("Sfix"))
	assert.Equal(t, rszfile.ValueSfix2{rszfile.SfixOne, -rszfile.SfixOne}, v.Get("Sfix2"))

	floats := v.Get("Floats").(*rszfile.ValueArray)
	assert.Equal(t, []rszfile.Value{rszfile.ValueF32(1), rszfile.ValueF32(2.5), rszfile.ValueF32(3)}, floats.Values)
	names := v.Get("Names").(*rszfile.ValueArray)
	assert.Equal(t, []rszfile.Value{rszfile.ValueString("a"), rszfile.ValueString("b")}, names.Values)

	// Undeclared fields keep their zero value.
	assert.Equal(t, rszfile.ValueMat4(mgl32.Ident4()), v.Get("Mat4"))
}

func TestDeclareUnknownClass(t *testing.T) {
	db := testschema.Database(testschema.Game)
	f := Folder("Odd",
		Property("Tag", "kept"),
		GameObject("Thing", Component("app.Missing", Property("X", 1))),
	).Declare(db)
	assert.Equal(t, "kept", f.Data.GetString("Tag"))
	c := f.Children()[0].(*rszfile.GameObject).Components()[0]
	assert.Equal(t, "app.Missing", c.ClassName())
	assert.Empty(t, c.Data.Fields)
}
