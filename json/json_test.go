package json

import (
	"encoding/json"
	"testing"

	"github.com/rszkit/rszfile"
	. "github.com/rszkit/rszfile/declare"
	"github.com/rszkit/rszfile/internal/testschema"
	"github.com/rszkit/rszfile/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoot(t *testing.T) *rszfile.Root {
	t.Helper()
	db := testschema.Database(testschema.Game)
	shared := rszfile.NewObject(db.Class("app.Child"))
	shared.Set("Label", rszfile.ValueString("shared"))
	root := Root{
		Resource("env/lamp.mesh"),
		Folder("Stage", Property("Path", "scene/linked.scn"),
			GameObject("Lamp", Ref("lamp"), Prefab("prefab/lamp.pfb"),
				Component("via.Transform", Property("LocalPosition", 1, 2, 3)),
				Component("app.Holder",
					Property("Child", shared),
					Property("Children", shared, Object("app.Child", Property("Value", 0.25))),
					Property("Params", UserData("app.Params", "user/params.user")),
				),
				GameObject("Bulb"),
			),
		),
		GameObject("Switch",
			Component("app.RefHolder", Property("Target", "lamp"), Property("Targets", "lamp")),
			Component("app.AllTypes",
				Property("Raw", []byte{9, 8, 7}),
				Property("S64", -1<<62),
				Property("U64", uint64(1<<63+1)),
				Property("F16", 0.1),
				Property("Color", 1, 2, 3, 4),
				Property("AABB", -1, -2, -3, 1, 2, 3),
				Property("Position", 123456789.125, 0, -1),
				Property("OBB", 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1, 0.5, 0.5, 0.5),
				Property("Sfix3", 1, 2, 3),
				Property("Names", "a", "b"),
			),
		),
	}.Declare(db, rszfile.KindScene)
	root.Meta.NullSlot = true
	root.Meta.RootParent = 0
	root.Meta.Version = 20
	root.Meta.UserData = []rszfile.UserDataPath{{ClassName: "app.Params", Path: "user/params.user"}}
	return root
}

func TestRoundTrip(t *testing.T) {
	root := sampleRoot(t)
	b, err := Encode(root)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, root.Meta, got.Meta)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "env/lamp.mesh", got.Resources[0].Path)

	again, err := Encode(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(again))

	for _, g := range root.GameObjects() {
		other := got.FindGameObject(g.ID)
		require.NotNil(t, other, g.Name())
		assert.Equal(t, g.Prefab, other.Prefab)
		require.Len(t, other.Components(), len(g.Components()))
		for i, c := range g.Components() {
			assert.Equal(t, c.Data, other.Components()[i].Data)
		}
	}

	lamp := got.FindFirstChild("Lamp", true).(*rszfile.GameObject)
	holder := lamp.GetComponent("app.Holder").Data
	children := holder.Get("Children").(*rszfile.ValueArray)
	assert.Same(t, holder.Get("Child").(rszfile.ValueObject).Object, children.Values[0].(rszfile.ValueObject).Object)
	assert.NotSame(t, children.Values[0].(rszfile.ValueObject).Object, children.Values[1].(rszfile.ValueObject).Object)

	sw := got.FindFirstChild("Switch", false).(*rszfile.GameObject)
	ref := sw.GetComponent("app.RefHolder").Data.Get("Target").(rszfile.ValueGameObjectRef)
	assert.Same(t, lamp, got.Index().Resolve(ref))

	stage := got.Children()[0].(*rszfile.Folder)
	assert.Equal(t, "scene/linked.scn", stage.Link())
}

func TestEncodeIndent(t *testing.T) {
	b, err := EncodeIndent(sampleRoot(t))
	require.NoError(t, err)
	assert.Contains(t, string(b), "\n\t\"game\": \"re4\"")
}

func TestInheritedContentSkipped(t *testing.T) {
	db := testschema.Database(testschema.Game)
	root := rszfile.NewRoot(testschema.Game, rszfile.KindScene)
	g := rszfile.NewGameObject(rszfile.NewObject(db.Class("via.GameObject")))
	g.Prefab = "prefab/enemy.pfb"
	require.NoError(t, g.AddComponent(rszfile.NewComponent(rszfile.NewObject(db.Class("via.Transform")))))
	mesh := rszfile.NewComponent(rszfile.NewObject(db.Class("via.render.Mesh")))
	mesh.Inherited = true
	require.NoError(t, g.AddComponent(mesh))
	child := rszfile.NewGameObject(rszfile.NewObject(db.Class("via.GameObject")))
	child.Inherited = true
	require.NoError(t, g.AddChild(child))
	require.NoError(t, root.AddChild(g))

	b, err := Encode(root)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	gg := got.Children()[0].(*rszfile.GameObject)
	require.Len(t, gg.Components(), 1)
	assert.Equal(t, "via.Transform", gg.Components()[0].ClassName())
	assert.Empty(t, gg.Children())
}

func TestUserDataRoot(t *testing.T) {
	db := testschema.Database(testschema.Game)
	root := rszfile.NewRoot(testschema.Game, rszfile.KindUserData)
	root.UserData = rszfile.NewObject(db.Class("app.Params"))
	root.UserData.Set("Speed", rszfile.ValueF32(2))

	b, err := Encode(root)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, rszfile.KindUserData, got.Meta.Kind)
	assert.Equal(t, root.UserData, got.UserData)
}

func TestDecodeErrors(t *testing.T) {
	for _, s := range []string{
		`{`,
		`{"rszfile_version": 1, "kind": "scn"}`,
		`{"rszfile_version": 0, "kind": "zip"}`,
		`{"rszfile_version": 0, "kind": "scn", "nodes": [{}]}`,
		`{"rszfile_version": 0, "kind": "scn", "nodes": [{"gameobject": {"fields": []}}]}`,
		`{"rszfile_version": 0, "kind": "scn", "nodes": [{"gameobject": {"class": "x", "fields": [{"name": "a", "type": "Vec3", "value": [1]}]}}]}`,
		`{"rszfile_version": 0, "kind": "scn", "nodes": [{"gameobject": {"ref": 4}}]}`,
	} {
		_, err := Decode([]byte(s))
		assert.Error(t, err, s)
	}
}

func TestValueFromJSON(t *testing.T) {
	for _, v := range []rszfile.Value{
		rszfile.ValueBool(true),
		rszfile.ValueS16(-5),
		rszfile.ValueU32(1 << 31),
		rszfile.ValueS64(-1 << 60),
		rszfile.ValueString("x"),
		rszfile.ValueRangeI{Min: -1, Max: 1},
		rszfile.ValueUint3{1, 2, 3},
		rszfile.ValueSfix4{1, 2, 3, 4},
	} {
		b, err := json.Marshal(ValueToJSON(v))
		require.NoError(t, err)
		var iv interface{}
		require.NoError(t, json.Unmarshal(b, &iv))
		assert.Equal(t, v, ValueFromJSON(v.Type(), iv), v.Type().String())
	}
	assert.Nil(t, ValueFromJSON(schema.TypeBool, "true"))
	assert.Nil(t, ValueFromJSON(schema.TypeGUID, "not a guid"))
	assert.Nil(t, ValueFromJSON(schema.TypeObject, nil))
}
