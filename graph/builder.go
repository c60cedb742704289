package graph

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/logger"
	"github.com/rszkit/rszfile/locator"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
)

// Options configures a Builder.
type Options struct {
	// InstancePrefabs completes each prefab instance of a scene with a copy
	// of the prefab, loaded through the Loader. The inline content of the
	// instance is kept; components and children of the prefab that the
	// instance does not store are added and flagged as inherited, so that
	// flattening writes the inline layout back. If the prefab cannot be
	// loaded, the instance is flagged as a placeholder.
	InstancePrefabs bool
}

// Builder builds scene graphs from containers.
type Builder struct {
	Schema schema.Service
	// Locator resolves resource paths. Optional.
	Locator locator.Locator
	// Registry supplies component behaviors. Optional.
	Registry *Registry
	// Loader loads prefabs and linked scenes. Optional.
	Loader Loader
	Logger logger.Logger

	Options Options
}

// buildState holds the state of one Build.
type buildState struct {
	b      *Builder
	ctx    context.Context
	log    logger.Logger
	game   schema.Game
	db     *schema.Database
	c      *container.Container
	res    *rsz.Resolver
	root   *rszfile.Root
	nodes  map[int32]rszfile.Node
	gos    map[int32]*rszfile.GameObject
	owners map[int32]*rszfile.Object
	// Prefab instances in object id order.
	instances []*rszfile.GameObject
}

// Build builds the graph of c. Failures of individual nodes, such as a
// missing prefab, are logged and replaced by placeholders. A container whose
// data cannot be converted is an error.
func (b *Builder) Build(ctx context.Context, game schema.Game, c *container.Container) (*rszfile.Root, error) {
	db, err := b.Schema.Database(game)
	if err != nil {
		return nil, err
	}
	s := &buildState{
		b:      b,
		ctx:    ctx,
		log:    logger.OrDiscard(b.Logger),
		game:   game,
		db:     db,
		c:      c,
		res:    rsz.NewResolver(c.Table),
		root:   rszfile.NewRoot(game, c.Kind),
		nodes:  map[int32]rszfile.Node{},
		gos:    map[int32]*rszfile.GameObject{},
		owners: map[int32]*rszfile.Object{},
	}
	if err := s.build(); err != nil {
		if errors.KindOf(err) != errors.KindUnknown {
			return nil, err
		}
		return nil, errors.Schema("build", "", err)
	}
	return s.root, nil
}

func (s *buildState) build() error {
	c, root := s.c, s.root
	root.Meta.Version = c.Version
	root.Meta.RSZVersion = c.Table.Version
	root.Meta.NullSlot = c.NullSlot()
	if root.Meta.NullSlot {
		root.Meta.RootParent = 0
	}
	root.Meta.Prefabs = append([]string(nil), c.Prefabs...)
	for _, info := range c.UserData {
		var name string
		if class := s.db.ClassByID(info.TypeID); class != nil {
			name = class.Name
		}
		root.Meta.UserData = append(root.Meta.UserData, rszfile.UserDataPath{ClassName: name, Path: info.Path})
	}

	s.resources()

	if c.Kind == rszfile.KindUserData {
		if len(c.Table.Objects) == 0 {
			return errors.New("userdata file has no root object")
		}
		obj, err := s.res.Object(c.Table.Objects[0])
		if err != nil {
			return err
		}
		root.UserData = obj
		return nil
	}

	if err := s.folders(); err != nil {
		return err
	}
	if err := s.gameObjects(); err != nil {
		return err
	}
	s.attach()
	s.refs()
	for _, g := range s.instances {
		s.instance(g)
	}
	return nil
}

// resources attaches the resource list first, so that later steps find
// resources by path.
func (s *buildState) resources() {
	for _, p := range s.c.Resources {
		res := &rszfile.Resource{Path: p}
		if s.b.Locator != nil {
			if src, ok := s.b.Locator.ResolveSourceFilePath(p, s.game); ok {
				res.Source = src
			} else {
				res.Missing = true
				s.log.Warn("missing resource", "op", "build", "path", p)
			}
		}
		s.root.Resources = append(s.root.Resources, res)
	}
}

func (s *buildState) object(id int32) (*rszfile.Object, error) {
	if id < 0 || int(id) >= len(s.c.Table.Objects) {
		return nil, errors.Errorf("object id %d out of range", id)
	}
	return s.res.Object(s.c.Table.Objects[id])
}

func (s *buildState) folders() error {
	for _, info := range s.c.Folders {
		data, err := s.object(info.ObjectID)
		if err != nil {
			return err
		}
		if data == nil {
			data = &rszfile.Object{}
		}
		f := rszfile.NewFolder(data)
		if f.IsProxy() && s.b.Loader != nil {
			loader, game := s.b.Loader, s.game
			f.SetLoader(func(ctx context.Context, path string) (*rszfile.Root, error) {
				return loader.Load(ctx, game, path)
			})
		}
		s.nodes[info.ObjectID] = f
	}
	return nil
}

func (s *buildState) gameObjects() error {
	for _, info := range s.c.GameObjects {
		data, err := s.object(info.ObjectID)
		if err != nil {
			return err
		}
		if data == nil {
			data = &rszfile.Object{}
		}
		g := rszfile.NewGameObject(data)
		if info.GUID != uuid.Nil {
			g.ID = info.GUID
		}
		s.owners[info.ObjectID] = data

		// Components are exactly the entries following the game object.
		if info.ComponentCount < 0 || int64(info.ObjectID)+int64(info.ComponentCount) >= int64(len(s.c.Table.Objects)) {
			return errors.Errorf("component count %d out of range", info.ComponentCount)
		}
		for k := int32(1); k <= info.ComponentCount; k++ {
			id := info.ObjectID + k
			data, err := s.object(id)
			if err != nil {
				return err
			}
			if data == nil {
				s.log.Warn("empty component", "op", "build", "object", id)
				data = &rszfile.Object{}
			}
			comp := rszfile.NewComponent(data)
			s.b.Registry.Attach(s.game, comp)
			if err := g.AddComponent(comp); err != nil {
				return err
			}
			s.owners[id] = data
		}

		if s.c.Kind == rszfile.KindScene && info.PrefabID != container.NoPrefab {
			if info.PrefabID < 0 || int(info.PrefabID) >= len(s.c.Prefabs) {
				return errors.Errorf("prefab index %d out of range", info.PrefabID)
			}
			g.Prefab = s.c.Prefabs[info.PrefabID]
			if s.b.Options.InstancePrefabs {
				s.instances = append(s.instances, g)
			}
		}
		s.nodes[info.ObjectID] = g
		s.gos[info.ObjectID] = g
	}
	return nil
}

// instance merges the prefab of inline into inline, which is already
// attached with its inline children. If the prefab cannot be loaded, inline
// is flagged as a placeholder.
func (s *buildState) instance(inline *rszfile.GameObject) {
	fail := func(err error) {
		s.log.Warn("prefab not instanced", "op", "build", "path", inline.Prefab, "class", inline.Data.ClassName, "err", err)
		inline.Placeholder = true
	}
	if s.b.Loader == nil {
		fail(errors.New("no loader"))
		return
	}
	prefab, err := s.b.Loader.Load(s.ctx, s.game, inline.Prefab)
	if err != nil {
		fail(err)
		return
	}
	var src *rszfile.GameObject
	for _, n := range prefab.Children() {
		if g, ok := n.(*rszfile.GameObject); ok {
			src = g
			break
		}
	}
	if src == nil {
		fail(errors.New("prefab has no game object"))
		return
	}

	cp := src.Clone()
	ids := map[uuid.UUID]uuid.UUID{}
	match(inline, cp, ids)
	retarget(cp, ids)
	s.merge(inline, cp)
}

// matchChildren pairs each child of src with the first unpaired child of dst
// of the same name.
func matchChildren(dst, src *rszfile.GameObject) map[*rszfile.GameObject]*rszfile.GameObject {
	pairs := map[*rszfile.GameObject]*rszfile.GameObject{}
	used := map[*rszfile.GameObject]bool{}
	inline := dst.Children()
	for _, child := range src.Children() {
		for _, d := range inline {
			if !used[d] && d.Name() == child.Name() {
				used[d] = true
				pairs[child] = d
				break
			}
		}
	}
	return pairs
}

// match maps the ids of src and its descendants to the ids of the inline game
// objects they pair with.
func match(dst, src *rszfile.GameObject, ids map[uuid.UUID]uuid.UUID) {
	ids[src.ID] = dst.ID
	for child, d := range matchChildren(dst, src) {
		match(d, child, ids)
	}
}

// merge adds to dst the components of src whose class dst lacks, and the
// children of src that pair with no child of dst. Paired children are merged
// in turn.
func (s *buildState) merge(dst, src *rszfile.GameObject) {
	for _, comp := range src.Components() {
		if dst.GetComponent(comp.ClassName()) != nil {
			continue
		}
		c := rszfile.NewComponent(comp.Data)
		c.Inherited = true
		s.b.Registry.Attach(s.game, c)
		if err := dst.AddComponent(c); err != nil {
			s.log.Warn("prefab component not added", "op", "build", "path", dst.Prefab, "class", comp.ClassName(), "err", err)
		}
	}
	pairs := matchChildren(dst, src)
	for _, child := range src.Children() {
		if d, ok := pairs[child]; ok {
			s.merge(d, child)
			continue
		}
		child.Inherited = true
		if err := dst.AddChild(child); err != nil {
			s.log.Warn("prefab child not added", "op", "build", "path", dst.Prefab, "class", child.Data.ClassName, "err", err)
			continue
		}
		s.behaviors(child)
	}
}

func (s *buildState) behaviors(g *rszfile.GameObject) {
	for _, c := range g.Components() {
		s.b.Registry.Attach(s.game, c)
	}
	for _, child := range g.Children() {
		s.behaviors(child)
	}
}

// retarget rewrites references within g and its descendants according to
// ids.
func retarget(g *rszfile.GameObject, ids map[uuid.UUID]uuid.UUID) {
	visit := func(obj *rszfile.Object) {
		obj.Walk(func(o *rszfile.Object) {
			for i, f := range o.Fields {
				o.Fields[i].Value = retargetValue(f.Value, ids)
			}
		})
	}
	visit(g.Data)
	for _, c := range g.Components() {
		visit(c.Data)
	}
	for _, child := range g.Children() {
		retarget(child, ids)
	}
}

func retargetValue(v rszfile.Value, ids map[uuid.UUID]uuid.UUID) rszfile.Value {
	switch v := v.(type) {
	case rszfile.ValueGameObjectRef:
		if to, ok := ids[v.Target]; ok {
			v.Target = to
		}
		return v
	case *rszfile.ValueArray:
		for i, e := range v.Values {
			v.Values[i] = retargetValue(e, ids)
		}
	}
	return v
}

func (s *buildState) isRoot(parent int32) bool {
	return parent == -1 || (s.root.Meta.NullSlot && parent == 0)
}

// attach adds nodes to their parents in ascending object id order.
func (s *buildState) attach() {
	ids := make([]int32, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parents := map[int32]int32{}
	for _, info := range s.c.Folders {
		parents[info.ObjectID] = info.ParentID
	}
	for _, info := range s.c.GameObjects {
		parents[info.ObjectID] = info.ParentID
	}

	for _, id := range ids {
		n := s.nodes[id]
		pid := parents[id]
		if s.isRoot(pid) {
			s.root.AddChild(n)
			continue
		}
		var err error
		switch p := s.nodes[pid].(type) {
		case *rszfile.Folder:
			err = p.AddChild(n)
		case *rszfile.GameObject:
			err = p.AddChild(n)
		default:
			err = errors.Errorf("parent %d is not a node", pid)
		}
		if err != nil {
			s.log.Warn("node attached to root", "op", "build", "object", id, "class", className(n), "err", errors.Reference("attach", "", err))
			s.root.AddChild(n)
		}
	}
}

func className(n rszfile.Node) string {
	switch n := n.(type) {
	case *rszfile.Folder:
		return n.Data.ClassName
	case *rszfile.GameObject:
		return n.Data.ClassName
	}
	return ""
}

// refs sets the targets of the GameObjectRef fields listed by the
// container. Entries that cannot be applied are logged.
func (s *buildState) refs() {
	for i, info := range s.c.GameObjectRefs {
		fail := func(msg string) {
			s.log.Warn(msg, "op", "build", "ref", i, "object", info.ObjectID, "property", info.PropertyID, "target", info.TargetID)
		}
		owner := s.owners[info.ObjectID]
		if owner == nil {
			fail("ref source is not a game object or component")
			continue
		}
		target := s.gos[info.TargetID]
		if target == nil {
			fail("ref target is not a game object")
			continue
		}
		name, ok := s.db.RefPropertyName(owner.ClassName, info.PropertyID)
		if !ok {
			fail("unknown ref property")
			continue
		}
		switch v := owner.Get(name).(type) {
		case rszfile.ValueGameObjectRef:
			v.Target = target.ID
			owner.Set(name, v)
		case *rszfile.ValueArray:
			if info.ArrayIndex < 0 || int(info.ArrayIndex) >= len(v.Values) {
				fail("ref array index out of range")
				continue
			}
			e, ok := v.Values[info.ArrayIndex].(rszfile.ValueGameObjectRef)
			if !ok {
				fail("ref property is not a GameObjectRef")
				continue
			}
			e.Target = target.ID
			v.Values[info.ArrayIndex] = e
		default:
			fail("ref property is not a GameObjectRef")
		}
	}
}
