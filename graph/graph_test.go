package graph

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/testschema"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newObject(t *testing.T, game schema.Game, class string) *rszfile.Object {
	t.Helper()
	c := testschema.Database(game).Class(class)
	require.NotNil(t, c, class)
	return rszfile.NewObject(c)
}

func named(t *testing.T, game schema.Game, class, name string) *rszfile.Object {
	t.Helper()
	obj := newObject(t, game, class)
	obj.Set("Name", rszfile.ValueString(name))
	return obj
}

func newRoot(game schema.Game, kind rszfile.Kind) *rszfile.Root {
	root := rszfile.NewRoot(game, kind)
	root.Meta.NullSlot = true
	root.Meta.RootParent = 0
	return root
}

func flatten(t *testing.T, root *rszfile.Root) *container.Container {
	t.Helper()
	c, err := (&Flattener{Schema: testschema.Service()}).Flatten(root)
	require.NoError(t, err)
	return c
}

// reload encodes c and decodes the result.
func reload(t *testing.T, game schema.Game, c *container.Container) ([]byte, *container.Container) {
	t.Helper()
	profile := testschema.Profile(game)
	b, err := container.Encoder{Profile: profile}.Encode(c)
	require.NoError(t, err)
	got, err := container.Decoder{Schema: testschema.Database(game), Profile: profile}.Decode(c.Kind, c.Version, b)
	require.NoError(t, err)
	return b, got
}

func build(t *testing.T, b *Builder, game schema.Game, c *container.Container) *rszfile.Root {
	t.Helper()
	if b.Schema == nil {
		b.Schema = testschema.Service()
	}
	root, err := b.Build(context.Background(), game, c)
	require.NoError(t, err)
	return root
}

func countClass(table *rsz.Table, class string) int {
	n := 0
	for _, inst := range table.Instances {
		if inst.ClassName() == class {
			n++
		}
	}
	return n
}

// sceneRoot returns a folder holding a game object with a mesh component.
func sceneRoot(t *testing.T, game schema.Game) *rszfile.Root {
	root := newRoot(game, rszfile.KindScene)
	folder := rszfile.NewFolder(named(t, game, "via.Folder", "Stage"))
	g := rszfile.NewGameObject(named(t, game, "via.GameObject", "Lamp"))
	mesh := newObject(t, game, "via.render.Mesh")
	mesh.Set("Mesh", rszfile.ValueResource("art/lamp.mesh"))
	mesh.Set("Material", rszfile.ValueResource("art/lamp.mdf2"))
	mesh.Set("Enabled", rszfile.ValueBool(true))
	require.NoError(t, g.AddComponent(rszfile.NewComponent(mesh)))
	require.NoError(t, folder.AddChild(g))
	require.NoError(t, root.AddChild(folder))
	return root
}

func TestSceneRoundTrip(t *testing.T) {
	for _, game := range []schema.Game{testschema.Game, testschema.EmbeddedGame, schema.GameRE7} {
		t.Run(string(game), func(t *testing.T) {
			root := sceneRoot(t, game)
			c := flatten(t, root)

			require.Len(t, c.Table.Objects, 4)
			assert.Equal(t, rsz.Ref(0), c.Table.Objects[0])
			assert.Equal(t, []container.FolderInfo{{ObjectID: 1, ParentID: 0}}, c.Folders)
			require.Len(t, c.GameObjects, 1)
			info := c.GameObjects[0]
			assert.Equal(t, int32(2), info.ObjectID)
			assert.Equal(t, int32(1), info.ParentID)
			assert.Equal(t, int32(1), info.ComponentCount)
			assert.Equal(t, int32(container.NoPrefab), info.PrefabID)
			assert.Equal(t, []string{"art/lamp.mesh", "art/lamp.mdf2"}, c.Resources)
			assert.Equal(t, "via.render.Mesh", c.Instance(3).ClassName())

			data, got := reload(t, game, c)
			rebuilt := build(t, &Builder{Registry: DefaultRegistry()}, game, got)

			require.Len(t, rebuilt.Children(), 1)
			folder, ok := rebuilt.Children()[0].(*rszfile.Folder)
			require.True(t, ok)
			assert.Equal(t, "Stage", folder.Name())
			require.Len(t, folder.Children(), 1)
			g, ok := folder.Children()[0].(*rszfile.GameObject)
			require.True(t, ok)
			assert.Equal(t, "Lamp", g.Name())
			assert.Same(t, folder, g.Parent())

			comp := g.GetComponent("via.render.Mesh")
			require.NotNil(t, comp)
			mesh, ok := comp.Behavior.(*Mesh)
			require.True(t, ok)
			assert.Equal(t, []string{"art/lamp.mesh", "art/lamp.mdf2"}, mesh.Resources())
			assert.True(t, mesh.Enabled())

			if testschema.Profile(game).GameObjectGUID {
				assert.Equal(t, root.GameObjects()[0].ID, g.ID)
			}
			assert.True(t, rebuilt.Meta.NullSlot)
			assert.Equal(t, int32(0), rebuilt.Meta.RootParent)

			again, _ := reload(t, game, flatten(t, rebuilt))
			assert.Equal(t, data, again)
		})
	}
}

func TestPreOrderLayout(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	a := rszfile.NewGameObject(named(t, game, "via.GameObject", "A"))
	b := rszfile.NewGameObject(named(t, game, "via.GameObject", "B"))
	c := rszfile.NewGameObject(named(t, game, "via.GameObject", "C"))
	require.NoError(t, a.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, a.AddComponent(rszfile.NewComponent(newObject(t, game, "via.render.Mesh"))))
	require.NoError(t, a.AddChild(b))
	require.NoError(t, b.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, root.AddChild(a))
	require.NoError(t, root.AddChild(c))

	cont := flatten(t, root)
	var classes []string
	for id := range cont.Table.Objects {
		classes = append(classes, cont.Instance(int32(id)).ClassName())
	}
	assert.Equal(t, []string{"", "via.GameObject", "via.Transform", "via.render.Mesh", "via.GameObject", "via.Transform", "via.GameObject"}, classes)
	assert.Equal(t, []int32{1, 4, 6}, []int32{cont.GameObjects[0].ObjectID, cont.GameObjects[1].ObjectID, cont.GameObjects[2].ObjectID})
	assert.Equal(t, []int32{0, 1, 0}, []int32{cont.GameObjects[0].ParentID, cont.GameObjects[1].ParentID, cont.GameObjects[2].ParentID})

	// Without a null slot, object ids start at 0 and root nodes have no
	// parent.
	root.Meta.NullSlot = false
	cont = flatten(t, root)
	assert.Equal(t, int32(0), cont.GameObjects[0].ObjectID)
	assert.Equal(t, int32(-1), cont.GameObjects[0].ParentID)
	assert.False(t, cont.NullSlot())

	_, got := reload(t, game, cont)
	rebuilt := build(t, &Builder{}, game, got)
	require.Len(t, rebuilt.Children(), 2)
	assert.Equal(t, "A", rebuilt.Children()[0].Name())
	assert.Equal(t, "B", rebuilt.Children()[0].(*rszfile.GameObject).Children()[0].Name())
	assert.Equal(t, int32(-1), rebuilt.Meta.RootParent)
}

func refHolder(t *testing.T, game schema.Game, target uuid.UUID, targets ...uuid.UUID) *rszfile.Object {
	obj := newObject(t, game, "app.RefHolder")
	obj.Set("Target", rszfile.ValueGameObjectRef{Target: target})
	arr := &rszfile.ValueArray{Elem: schema.TypeGameObjectRef}
	for _, id := range targets {
		arr.Values = append(arr.Values, rszfile.ValueGameObjectRef{Target: id})
	}
	obj.Set("Targets", arr)
	return obj
}

func TestPrefabRefs(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindPrefab)
	parent := rszfile.NewGameObject(named(t, game, "via.GameObject", "Parent"))
	a := rszfile.NewGameObject(named(t, game, "via.GameObject", "A"))
	b := rszfile.NewGameObject(named(t, game, "via.GameObject", "B"))
	require.NoError(t, a.AddComponent(rszfile.NewComponent(refHolder(t, game, parent.ID, parent.ID, b.ID))))
	require.NoError(t, b.AddComponent(rszfile.NewComponent(refHolder(t, game, parent.ID))))
	require.NoError(t, parent.AddChild(a))
	require.NoError(t, parent.AddChild(b))
	require.NoError(t, root.AddChild(parent))

	c := flatten(t, root)
	// null, Parent, A, A's holder, B, B's holder.
	require.Len(t, c.Table.Objects, 6)
	assert.Equal(t, 3, countClass(c.Table, "via.GameObject"))
	assert.ElementsMatch(t, []container.GameObjectRefInfo{
		{ObjectID: 3, PropertyID: testschema.TargetProperty, ArrayIndex: 0, TargetID: 1},
		{ObjectID: 3, PropertyID: testschema.TargetsProperty, ArrayIndex: 0, TargetID: 1},
		{ObjectID: 3, PropertyID: testschema.TargetsProperty, ArrayIndex: 1, TargetID: 4},
		{ObjectID: 5, PropertyID: testschema.TargetProperty, ArrayIndex: 0, TargetID: 1},
	}, c.GameObjectRefs)

	data, got := reload(t, game, c)
	rebuilt := build(t, &Builder{}, game, got)
	idx := rebuilt.Index()
	p := rebuilt.Children()[0].(*rszfile.GameObject)
	ra := p.Children()[0].Components()[0].Data
	rb := p.Children()[1].Components()[0].Data
	assert.Same(t, p, idx.Resolve(ra.Get("Target").(rszfile.ValueGameObjectRef)))
	assert.Same(t, p, idx.Resolve(rb.Get("Target").(rszfile.ValueGameObjectRef)))
	targets := ra.Get("Targets").(*rszfile.ValueArray)
	assert.Same(t, p, idx.Resolve(targets.Values[0].(rszfile.ValueGameObjectRef)))
	assert.Same(t, p.Children()[1], idx.Resolve(targets.Values[1].(rszfile.ValueGameObjectRef)))

	again, _ := reload(t, game, flatten(t, rebuilt))
	assert.Equal(t, data, again)
}

func TestSceneRefs(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	target := rszfile.NewGameObject(named(t, game, "via.GameObject", "Target"))
	holder := rszfile.NewGameObject(named(t, game, "via.GameObject", "Holder"))
	data := refHolder(t, game, target.ID, target.ID)
	require.NoError(t, holder.AddComponent(rszfile.NewComponent(data)))
	require.NoError(t, root.AddChild(target))
	require.NoError(t, root.AddChild(holder))

	c := flatten(t, root)
	assert.Empty(t, c.GameObjectRefs)
	inst := c.Instance(3)
	require.Equal(t, "app.RefHolder", inst.ClassName())
	assert.Equal(t, target.ID, inst.Values[0].(rszfile.ValueGameObjectRef).GUID)
	assert.Equal(t, target.ID, inst.Values[1].(*rszfile.ValueArray).Values[0].(rszfile.ValueGameObjectRef).GUID)

	// The graph itself is left unchanged.
	assert.Equal(t, uuid.Nil, data.Get("Target").(rszfile.ValueGameObjectRef).GUID)
	assert.Equal(t, uuid.Nil, data.Get("Targets").(*rszfile.ValueArray).Values[0].(rszfile.ValueGameObjectRef).GUID)

	_, got := reload(t, game, c)
	rebuilt := build(t, &Builder{}, game, got)
	h := rebuilt.FindFirstChild("Holder", false).(*rszfile.GameObject)
	ref := h.Components()[0].Data.Get("Target").(rszfile.ValueGameObjectRef)
	assert.Same(t, rebuilt.FindFirstChild("Target", false), rebuilt.FindGameObject(ref.ID()))
}

func TestDanglingRefs(t *testing.T) {
	game := testschema.Game
	other := uuid.New()

	// A stored id alone is written unchanged.
	root := newRoot(game, rszfile.KindScene)
	g := rszfile.NewGameObject(named(t, game, "via.GameObject", "G"))
	data := newObject(t, game, "app.RefHolder")
	data.Set("Target", rszfile.ValueGameObjectRef{GUID: other})
	require.NoError(t, g.AddComponent(rszfile.NewComponent(data)))
	require.NoError(t, root.AddChild(g))
	c := flatten(t, root)
	assert.Equal(t, other, c.Instance(2).Values[0].(rszfile.ValueGameObjectRef).GUID)

	// A target outside the tree is an error.
	for _, kind := range []rszfile.Kind{rszfile.KindScene, rszfile.KindPrefab} {
		root := newRoot(game, kind)
		g := rszfile.NewGameObject(named(t, game, "via.GameObject", "G"))
		require.NoError(t, g.AddComponent(rszfile.NewComponent(refHolder(t, game, other))))
		require.NoError(t, root.AddChild(g))
		_, err := (&Flattener{Schema: testschema.Service()}).Flatten(root)
		require.Error(t, err, kind.String())
		assert.Equal(t, errors.KindReference, errors.KindOf(err))
		var rerr *errors.Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, "app.RefHolder", rerr.Class)
		assert.Empty(t, rerr.Path)
	}

	// A prefab reference held by a nested object cannot be listed.
	root = newRoot(game, rszfile.KindPrefab)
	g = rszfile.NewGameObject(named(t, game, "via.GameObject", "G"))
	holder := newObject(t, game, "app.Holder")
	holder.Set("Child", rszfile.ValueObject{Object: refHolder(t, game, g.ID)})
	require.NoError(t, g.AddComponent(rszfile.NewComponent(holder)))
	require.NoError(t, root.AddChild(g))
	_, err := (&Flattener{Schema: testschema.Service()}).Flatten(root)
	require.Error(t, err)
	assert.Equal(t, errors.KindReference, errors.KindOf(err))
}

func TestSharedObjectsWrittenOnce(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	g := rszfile.NewGameObject(named(t, game, "via.GameObject", "G"))
	shared := newObject(t, game, "app.Child")
	shared.Set("Label", rszfile.ValueString("shared"))
	for i := 0; i < 2; i++ {
		holder := newObject(t, game, "app.Holder")
		holder.Set("Child", rszfile.ValueObject{Object: shared})
		require.NoError(t, g.AddComponent(rszfile.NewComponent(holder)))
	}
	require.NoError(t, root.AddChild(g))

	c := flatten(t, root)
	assert.Equal(t, 1, countClass(c.Table, "app.Child"))
	assert.Equal(t, 2, countClass(c.Table, "app.Holder"))

	_, got := reload(t, game, c)
	rebuilt := build(t, &Builder{}, game, got)
	comps := rebuilt.GameObjects()[0].Components()
	require.Len(t, comps, 2)
	assert.Same(t,
		comps[0].Data.Get("Child").(rszfile.ValueObject).Object,
		comps[1].Data.Get("Child").(rszfile.ValueObject).Object,
	)
}

func TestPrefabRejectsFolders(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindPrefab)
	require.NoError(t, root.AddChild(rszfile.NewFolder(named(t, game, "via.Folder", "F"))))
	_, err := (&Flattener{Schema: testschema.Service()}).Flatten(root)
	require.Error(t, err)
	assert.Equal(t, errors.KindWrite, errors.KindOf(err))
}

func TestFlattenUnknownClass(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	require.NoError(t, root.AddChild(rszfile.NewGameObject(&rszfile.Object{ClassName: "app.Missing"})))
	_, err := (&Flattener{Schema: testschema.Service()}).Flatten(root)
	require.Error(t, err)
	assert.Equal(t, errors.KindSchema, errors.KindOf(err))
}

func TestUserDataFile(t *testing.T) {
	game := testschema.Game
	root := rszfile.NewRoot(game, rszfile.KindUserData)
	params := newObject(t, game, "app.Params")
	params.Set("Speed", rszfile.ValueF32(2.5))
	root.UserData = params

	c := flatten(t, root)
	require.Len(t, c.Table.Objects, 1)
	assert.Equal(t, testschema.Profile(game).UserVersion, c.Version)

	_, got := reload(t, game, c)
	rebuilt := build(t, &Builder{}, game, got)
	assert.Equal(t, params, rebuilt.UserData)
	assert.Empty(t, rebuilt.Children())

	_, err := (&Flattener{Schema: testschema.Service()}).Flatten(rszfile.NewRoot(game, rszfile.KindUserData))
	assert.Error(t, err)
}

func TestUserDataPaths(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	g := rszfile.NewGameObject(named(t, game, "via.GameObject", "G"))
	for _, p := range []string{"data/q.user", "data/p.user", "data/new.user", "data/q.user"} {
		holder := newObject(t, game, "app.Holder")
		holder.Set("Params", rszfile.ValueUserData{ClassName: "app.Params", Path: p})
		require.NoError(t, g.AddComponent(rszfile.NewComponent(holder)))
	}
	require.NoError(t, root.AddChild(g))
	root.Meta.UserData = []rszfile.UserDataPath{
		{ClassName: "app.Params", Path: "data/p.user"},
		{ClassName: "app.Params", Path: "data/unused.user"},
		{ClassName: "app.Params", Path: "data/q.user"},
	}

	c := flatten(t, root)
	var paths []string
	for _, info := range c.UserData {
		paths = append(paths, info.Path)
		assert.Equal(t, uint32(0x2000_0004), info.TypeID)
		assert.Equal(t, uint32(0xB4), info.CRC)
	}
	assert.Equal(t, []string{"data/p.user", "data/q.user", "data/new.user"}, paths)

	_, got := reload(t, game, c)
	rebuilt := build(t, &Builder{}, game, got)
	assert.Equal(t, []rszfile.UserDataPath{
		{ClassName: "app.Params", Path: "data/p.user"},
		{ClassName: "app.Params", Path: "data/q.user"},
		{ClassName: "app.Params", Path: "data/new.user"},
	}, rebuilt.Meta.UserData)
	comps := rebuilt.GameObjects()[0].Components()
	assert.Equal(t, "data/new.user", comps[2].Data.Get("Params").(rszfile.ValueUserData).Path)
}

func TestPrefabTable(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	root.Meta.Prefabs = []string{"prefab/kept.pfb"}
	for _, p := range []string{"prefab/b.pfb", "prefab/kept.pfb", "prefab/b.pfb", ""} {
		g := rszfile.NewGameObject(named(t, game, "via.GameObject", p))
		g.Prefab = p
		require.NoError(t, root.AddChild(g))
	}
	c := flatten(t, root)
	assert.Equal(t, []string{"prefab/kept.pfb", "prefab/b.pfb"}, c.Prefabs)
	var ids []int32
	for _, info := range c.GameObjects {
		ids = append(ids, info.PrefabID)
	}
	assert.Equal(t, []int32{1, 0, 1, container.NoPrefab}, ids)

	_, got := reload(t, game, c)
	rebuilt := build(t, &Builder{}, game, got)
	assert.Equal(t, "prefab/b.pfb", rebuilt.GameObjects()[0].Prefab)
	assert.Equal(t, "", rebuilt.GameObjects()[3].Prefab)
}

type mapLocator map[string]string

func (l mapLocator) ResolveSourceFilePath(rel string, game schema.Game) (string, bool) {
	p, ok := l[rel]
	return p, ok
}

func (l mapLocator) GetImportCachePath(rel string, game schema.Game) string {
	return rel + ".cache"
}

func TestBuildResources(t *testing.T) {
	game := testschema.Game
	c := flatten(t, sceneRoot(t, game))
	root := build(t, &Builder{Locator: mapLocator{"art/lamp.mesh": "/files/art/lamp.mesh.2109108288"}}, game, c)
	require.Len(t, root.Resources, 2)
	assert.Equal(t, rszfile.Resource{Path: "art/lamp.mesh", Source: "/files/art/lamp.mesh.2109108288"}, *root.Resources[0])
	assert.Equal(t, rszfile.Resource{Path: "art/lamp.mdf2", Missing: true}, *root.Resources[1])
}

func TestBuildBadParent(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	a := rszfile.NewGameObject(named(t, game, "via.GameObject", "A"))
	require.NoError(t, a.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, root.AddChild(a))
	require.NoError(t, root.AddChild(rszfile.NewGameObject(named(t, game, "via.GameObject", "B"))))
	c := flatten(t, root)

	// B claims the component of A as its parent.
	c.GameObjects[1].ParentID = 2
	rebuilt := build(t, &Builder{}, game, c)
	require.Len(t, rebuilt.Children(), 2)
	assert.Equal(t, "B", rebuilt.Children()[1].Name())

	// A game object cannot hold a folder.
	root = newRoot(game, rszfile.KindScene)
	require.NoError(t, root.AddChild(rszfile.NewGameObject(named(t, game, "via.GameObject", "G"))))
	require.NoError(t, root.AddChild(rszfile.NewFolder(named(t, game, "via.Folder", "F"))))
	c = flatten(t, root)
	c.Folders[0].ParentID = 1
	rebuilt = build(t, &Builder{}, game, c)
	assert.Len(t, rebuilt.Children(), 2)
}

func TestBuildCorruptInfo(t *testing.T) {
	game := testschema.Game
	for _, tt := range []struct {
		name   string
		mutate func(c *container.Container)
	}{
		{"component count", func(c *container.Container) { c.GameObjects[0].ComponentCount = 0x7FFFFFFF }},
		{"negative component count", func(c *container.Container) { c.GameObjects[0].ComponentCount = -1 }},
		{"game object id", func(c *container.Container) { c.GameObjects[0].ObjectID = 40 }},
		{"folder id", func(c *container.Container) { c.Folders[0].ObjectID = -3 }},
		{"prefab index", func(c *container.Container) { c.GameObjects[0].PrefabID = 5 }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := flatten(t, sceneRoot(t, game))
			tt.mutate(c)
			var err error
			require.NotPanics(t, func() {
				_, err = (&Builder{Schema: testschema.Service()}).Build(context.Background(), game, c)
			})
			require.Error(t, err)
			assert.Equal(t, errors.KindSchema, errors.KindOf(err))
		})
	}
}

func TestBuildUnresolvedRefInfo(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindPrefab)
	parent := rszfile.NewGameObject(named(t, game, "via.GameObject", "P"))
	require.NoError(t, parent.AddComponent(rszfile.NewComponent(refHolder(t, game, parent.ID))))
	require.NoError(t, root.AddChild(parent))
	c := flatten(t, root)
	require.Len(t, c.GameObjectRefs, 1)

	_, got := reload(t, game, c)
	got.GameObjectRefs[0].PropertyID = 0x7777
	rebuilt := build(t, &Builder{}, game, got)
	ref := rebuilt.GameObjects()[0].Components()[0].Data.Get("Target").(rszfile.ValueGameObjectRef)
	assert.True(t, ref.IsEmpty())
}

func TestLinkedFolder(t *testing.T) {
	game := testschema.Game
	root := newRoot(game, rszfile.KindScene)
	data := named(t, game, "via.Folder", "Sub")
	data.Set("Path", rszfile.ValueString("scene/sub.scn"))
	require.NoError(t, root.AddChild(rszfile.NewFolder(data)))
	c := flatten(t, root)

	linked := newRoot(game, rszfile.KindScene)
	var calls int32
	loader := LoaderFunc(func(ctx context.Context, g schema.Game, path string) (*rszfile.Root, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, game, g)
		assert.Equal(t, "scene/sub.scn", path)
		return linked, nil
	})
	rebuilt := build(t, &Builder{Loader: loader}, game, c)
	folder := rebuilt.Children()[0].(*rszfile.Folder)
	require.True(t, folder.IsProxy())
	assert.Nil(t, folder.Linked())
	assert.Zero(t, atomic.LoadInt32(&calls))

	for i := 0; i < 2; i++ {
		got, err := folder.Load(context.Background())
		require.NoError(t, err)
		assert.Same(t, linked, got)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// prefabScene returns a scene holding one instance of prefab/enemy.pfb, with
// an inline transform.
func prefabScene(t *testing.T, game schema.Game) (*container.Container, uuid.UUID) {
	root := newRoot(game, rszfile.KindScene)
	g := rszfile.NewGameObject(named(t, game, "via.GameObject", "Enemy01"))
	g.Prefab = "prefab/enemy.pfb"
	require.NoError(t, g.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, root.AddChild(g))
	return flatten(t, root), g.ID
}

func TestPrefabInstancing(t *testing.T) {
	game := testschema.Game
	c, id := prefabScene(t, game)

	prefab := newRoot(game, rszfile.KindPrefab)
	body := rszfile.NewGameObject(named(t, game, "via.GameObject", "Enemy"))
	require.NoError(t, body.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, body.AddComponent(rszfile.NewComponent(newObject(t, game, "via.render.Mesh"))))
	hand := rszfile.NewGameObject(named(t, game, "via.GameObject", "Hand"))
	require.NoError(t, hand.AddComponent(rszfile.NewComponent(refHolder(t, game, body.ID))))
	require.NoError(t, body.AddChild(hand))
	require.NoError(t, prefab.AddChild(body))

	loader := LoaderFunc(func(ctx context.Context, g schema.Game, path string) (*rszfile.Root, error) {
		return prefab, nil
	})
	b := &Builder{Loader: loader, Registry: DefaultRegistry(), Options: Options{InstancePrefabs: true}}
	root := build(t, b, game, c)

	g := root.Children()[0].(*rszfile.GameObject)
	assert.Equal(t, id, g.ID)
	assert.Equal(t, "Enemy01", g.Name())
	assert.Equal(t, "prefab/enemy.pfb", g.Prefab)
	assert.False(t, g.Placeholder)
	require.Len(t, g.Components(), 2)
	assert.IsType(t, &Transform{}, g.Components()[0].Behavior)
	assert.IsType(t, &Mesh{}, g.Components()[1].Behavior)

	assert.False(t, g.Components()[0].Inherited)
	assert.True(t, g.Components()[1].Inherited)

	require.Len(t, g.Children(), 1)
	copied := g.Children()[0]
	assert.True(t, copied.Inherited)
	assert.NotSame(t, hand, copied)
	assert.NotEqual(t, hand.ID, copied.ID)
	ref := copied.Components()[0].Data.Get("Target").(rszfile.ValueGameObjectRef)
	assert.Equal(t, g.ID, ref.ID())

	// The prefab itself is untouched.
	assert.Equal(t, body.ID, hand.Components()[0].Data.Get("Target").(rszfile.ValueGameObjectRef).ID())
}

func TestPrefabInstanceRoundTrip(t *testing.T) {
	game := testschema.Game

	scene := newRoot(game, rszfile.KindScene)
	enemy := rszfile.NewGameObject(named(t, game, "via.GameObject", "Enemy01"))
	enemy.Prefab = "prefab/enemy.pfb"
	tr := newObject(t, game, "via.Transform")
	tr.Set("LocalPosition", rszfile.ValueVec3{1, 2, 3})
	require.NoError(t, enemy.AddComponent(rszfile.NewComponent(tr)))
	inlineHand := rszfile.NewGameObject(named(t, game, "via.GameObject", "Hand"))
	require.NoError(t, inlineHand.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, enemy.AddChild(inlineHand))
	require.NoError(t, scene.AddChild(enemy))
	c := flatten(t, scene)
	data, _ := reload(t, game, c)

	prefab := newRoot(game, rszfile.KindPrefab)
	body := rszfile.NewGameObject(named(t, game, "via.GameObject", "Enemy"))
	require.NoError(t, body.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, body.AddComponent(rszfile.NewComponent(newObject(t, game, "via.render.Mesh"))))
	hand := rszfile.NewGameObject(named(t, game, "via.GameObject", "Hand"))
	require.NoError(t, hand.AddComponent(rszfile.NewComponent(newObject(t, game, "via.Transform"))))
	require.NoError(t, hand.AddComponent(rszfile.NewComponent(newObject(t, game, "via.render.Mesh"))))
	require.NoError(t, body.AddChild(hand))
	tail := rszfile.NewGameObject(named(t, game, "via.GameObject", "Tail"))
	require.NoError(t, tail.AddComponent(rszfile.NewComponent(refHolder(t, game, hand.ID))))
	require.NoError(t, body.AddChild(tail))
	require.NoError(t, prefab.AddChild(body))

	loader := LoaderFunc(func(ctx context.Context, g schema.Game, path string) (*rszfile.Root, error) {
		return prefab, nil
	})
	b := &Builder{Loader: loader, Registry: DefaultRegistry(), Options: Options{InstancePrefabs: true}}
	root := build(t, b, game, c)

	g := root.Children()[0].(*rszfile.GameObject)
	require.Len(t, g.Components(), 2)
	assert.Equal(t, rszfile.ValueVec3{1, 2, 3}, g.Components()[0].Data.Get("LocalPosition"))
	assert.False(t, g.Components()[0].Inherited)
	assert.Equal(t, "via.render.Mesh", g.Components()[1].ClassName())
	assert.True(t, g.Components()[1].Inherited)

	var names []string
	for _, child := range g.Children() {
		names = append(names, child.Name())
	}
	require.Equal(t, []string{"Hand", "Tail"}, names)
	gotHand, gotTail := g.Children()[0], g.Children()[1]
	assert.False(t, gotHand.Inherited)
	require.Len(t, gotHand.Components(), 2)
	assert.False(t, gotHand.Components()[0].Inherited)
	assert.True(t, gotHand.Components()[1].Inherited)
	assert.True(t, gotTail.Inherited)
	ref := gotTail.Components()[0].Data.Get("Target").(rszfile.ValueGameObjectRef)
	assert.Equal(t, gotHand.ID, ref.ID())

	// Flattening writes the inline layout back.
	again := flatten(t, root)
	assert.Len(t, again.GameObjects, len(c.GameObjects))
	out, _ := reload(t, game, again)
	assert.Equal(t, data, out)
}

func TestPrefabInstancingFailure(t *testing.T) {
	game := testschema.Game
	c, id := prefabScene(t, game)
	loader := LoaderFunc(func(ctx context.Context, g schema.Game, path string) (*rszfile.Root, error) {
		return nil, errors.Reference("load", path, errors.New("not found"))
	})
	b := &Builder{Loader: loader, Options: Options{InstancePrefabs: true}}
	root := build(t, b, game, c)

	g := root.Children()[0].(*rszfile.GameObject)
	assert.True(t, g.Placeholder)
	assert.Equal(t, id, g.ID)
	require.Len(t, g.Components(), 1)
	assert.Equal(t, "via.Transform", g.Components()[0].ClassName())
	assert.True(t, g.Components()[0].IsPlaceholder())

	// Without instancing, prefab instances keep their inline content.
	root = build(t, &Builder{Loader: loader}, game, c)
	g = root.Children()[0].(*rszfile.GameObject)
	assert.False(t, g.Placeholder)
	assert.Equal(t, "prefab/enemy.pfb", g.Prefab)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Lookup(schema.GameRE4, TransformClass))
	assert.Nil(t, r.Lookup(schema.GameRE4, "app.Unknown"))

	type custom struct{ rszfile.Behavior }
	r.Register(schema.GameRE2, TransformClass, func(*rszfile.Object) rszfile.Behavior { return custom{} })
	comp := rszfile.NewComponent(&rszfile.Object{ClassName: TransformClass})
	assert.True(t, r.Attach(schema.GameRE2, comp))
	assert.IsType(t, custom{}, comp.Behavior)
	assert.True(t, r.Attach(schema.GameRE4, comp))
	assert.IsType(t, &Transform{}, comp.Behavior)

	var nilRegistry *Registry
	assert.False(t, nilRegistry.Attach(schema.GameRE4, comp))
}

func TestTransform(t *testing.T) {
	data := newObject(t, testschema.Game, "via.Transform")
	tr := &Transform{Data: data}
	assert.Equal(t, mgl32.QuatIdent(), tr.Rotation())
	assert.Equal(t, mgl32.Vec3{}, tr.Scale())

	tr.SetPosition(mgl32.Vec3{1, 2, 3})
	tr.SetScale(mgl32.Vec3{2, 2, 2})
	m := tr.Matrix()
	assert.Equal(t, mgl32.Vec4{3, 4, 5, 1}, m.Mul4x1(mgl32.Vec4{1, 1, 1, 1}))

	tr.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	p := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 1, p[0], 1e-5)
	assert.InDelta(t, 4, p[1], 1e-5)

	assert.Equal(t, mgl32.Vec3{1, 1, 1}, (&Transform{Data: &rszfile.Object{}}).Scale())
}
