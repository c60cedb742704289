package graph

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/container"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/internal/logger"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
)

// Flattener converts scene graphs to containers.
type Flattener struct {
	Schema schema.Service
	Logger logger.Logger
}

type flattenState struct {
	log     logger.Logger
	root    *rszfile.Root
	db      *schema.Database
	profile schema.Profile
	c       *container.Container
	b       *rsz.Builder

	// Object ids of game objects by id, and of the data of game objects and
	// components.
	gos     map[uuid.UUID]int32
	objects map[rsz.Ref]int32
	prefabs map[string]int32

	// Ids of inherited game objects, which are not written.
	inherited map[uuid.UUID]bool
}

// Flatten converts root to a container. Nodes are written in pre-order: each
// game object is followed by its components, then by its children. Objects
// shared by several fields are written once.
//
// A reference whose target is set but not part of the tree is an error. A
// reference carrying only a stored id is written unchanged.
func (f *Flattener) Flatten(root *rszfile.Root) (*container.Container, error) {
	game := root.Meta.Game
	db, err := f.Schema.Database(game)
	if err != nil {
		return nil, err
	}
	profile, err := f.Schema.Profile(game)
	if err != nil {
		return nil, err
	}
	version := root.Meta.RSZVersion
	if version == 0 {
		version = profile.RSZVersion
	}
	c := &container.Container{
		Kind:    root.Meta.Kind,
		Version: root.Meta.Version,
	}
	if c.Version == 0 {
		c.Version = container.ProfileVersion(profile, c.Kind)
	}
	s := &flattenState{
		log:     logger.OrDiscard(f.Logger),
		root:    root,
		db:      db,
		profile: profile,
		c:       c,
		b:       rsz.NewBuilder(db, version),
		gos:     map[uuid.UUID]int32{},
		objects: map[rsz.Ref]int32{},
		prefabs: map[string]int32{},

		inherited: map[uuid.UUID]bool{},
	}
	if err := s.flatten(); err != nil {
		if errors.KindOf(err) != errors.KindUnknown {
			return nil, err
		}
		return nil, errors.Schema("flatten", "", err)
	}
	return c, nil
}

func (s *flattenState) flatten() error {
	c, root := s.c, s.root
	if c.Kind == rszfile.KindUserData {
		if root.UserData == nil {
			return errors.New("userdata root has no content")
		}
		ref, err := s.b.Object(root.UserData)
		if err != nil {
			return err
		}
		s.b.AddObject(ref)
	} else {
		if c.Kind == rszfile.KindScene {
			for i, p := range root.Meta.Prefabs {
				if _, ok := s.prefabs[p]; !ok {
					s.prefabs[p] = int32(i)
				}
			}
			c.Prefabs = append(c.Prefabs, root.Meta.Prefabs...)
		}
		parent := root.Meta.RootParent
		if root.Meta.NullSlot {
			s.b.AddObject(0)
		} else {
			parent = -1
		}
		for _, n := range root.Children() {
			if err := s.node(n, parent); err != nil {
				return err
			}
		}
	}
	c.Table = s.b.Table()

	if err := s.refs(); err != nil {
		return err
	}
	s.resources()
	return s.userData()
}

func (s *flattenState) add(data *rszfile.Object) (int32, error) {
	ref, err := s.b.Object(data)
	if err != nil {
		return 0, err
	}
	id := int32(len(s.b.Table().Objects))
	s.b.AddObject(ref)
	if _, ok := s.objects[ref]; !ok && ref != 0 {
		s.objects[ref] = id
	}
	return id, nil
}

func (s *flattenState) node(n rszfile.Node, parent int32) error {
	switch n := n.(type) {
	case *rszfile.Folder:
		if s.c.Kind != rszfile.KindScene {
			return errors.E(errors.KindWrite, "flatten", n.Name(), errors.Errorf("%s file cannot hold folders", s.c.Kind))
		}
		id, err := s.add(n.Data)
		if err != nil {
			return err
		}
		s.c.Folders = append(s.c.Folders, container.FolderInfo{ObjectID: id, ParentID: parent})
		for _, child := range n.Children() {
			if err := s.node(child, id); err != nil {
				return err
			}
		}
	case *rszfile.GameObject:
		if n.Inherited {
			s.inherit(n)
			return nil
		}
		id, err := s.add(n.Data)
		if err != nil {
			return err
		}
		var components []*rszfile.Component
		for _, comp := range n.Components() {
			if comp.Inherited {
				continue
			}
			if _, err := s.add(comp.Data); err != nil {
				return err
			}
			components = append(components, comp)
		}
		info := container.GameObjectInfo{
			ObjectID:       id,
			ParentID:       parent,
			ComponentCount: int32(len(components)),
			PrefabID:       container.NoPrefab,
		}
		if s.c.Kind == rszfile.KindScene {
			if s.profile.GameObjectGUID {
				info.GUID = n.ID
			}
			if n.Prefab != "" {
				info.PrefabID = s.prefab(n.Prefab)
			}
		}
		s.c.GameObjects = append(s.c.GameObjects, info)
		if _, ok := s.gos[n.ID]; !ok {
			s.gos[n.ID] = id
		}
		for _, child := range n.Children() {
			if err := s.node(child, id); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("unexpected node %T", n)
	}
	return nil
}

// inherit records the ids of an inherited game object and its descendants.
func (s *flattenState) inherit(g *rszfile.GameObject) {
	s.inherited[g.ID] = true
	for _, child := range g.Children() {
		s.inherit(child)
	}
}

// prefab returns the index of a prefab path, appending new paths.
func (s *flattenState) prefab(path string) int32 {
	if i, ok := s.prefabs[path]; ok {
		return i
	}
	i := int32(len(s.c.Prefabs))
	s.c.Prefabs = append(s.c.Prefabs, path)
	s.prefabs[path] = i
	return i
}

// refs resolves the targets of GameObjectRef values. Scenes store the id of
// the target in the value. Prefabs store the value unchanged and list the
// target in the ref info table.
func (s *flattenState) refs() error {
	return s.tableRefs(s.c.Table, true)
}

func (s *flattenState) tableRefs(t *rsz.Table, top bool) error {
	for i, inst := range t.Instances {
		if inst.UserData != nil && inst.UserData.Table != nil {
			if err := s.tableRefs(inst.UserData.Table, false); err != nil {
				return err
			}
			continue
		}
		if inst.Class == nil {
			continue
		}
		for fi, f := range inst.Class.Fields {
			if f.Type != schema.TypeGameObjectRef || fi >= len(inst.Values) {
				continue
			}
			var err error
			switch v := inst.Values[fi].(type) {
			case rszfile.ValueGameObjectRef:
				inst.Values[fi], err = s.ref(t, top, rsz.Ref(i), inst.Class, f, 0, v)
			case *rszfile.ValueArray:
				// Arrays of values are shared with the graph.
				arr := &rszfile.ValueArray{Elem: v.Elem, Values: make([]rszfile.Value, len(v.Values))}
				for ei, e := range v.Values {
					r, ok := e.(rszfile.ValueGameObjectRef)
					if !ok {
						arr.Values[ei] = e
						continue
					}
					if arr.Values[ei], err = s.ref(t, top, rsz.Ref(i), inst.Class, f, int32(ei), r); err != nil {
						break
					}
				}
				inst.Values[fi] = arr
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *flattenState) ref(t *rsz.Table, top bool, owner rsz.Ref, class *schema.Class, f schema.Field, index int32, v rszfile.ValueGameObjectRef) (rszfile.Value, error) {
	if v.Target == uuid.Nil {
		return v, nil
	}
	target, ok := s.gos[v.Target]
	if !ok && s.c.Kind == rszfile.KindScene && s.inherited[v.Target] {
		// Inherited game objects are recreated from their prefab on load.
		v.GUID = v.Target
		return v, nil
	}
	if !ok {
		return nil, errors.ClassReference("flatten", class.Name, fmt.Errorf("field %s: target %s is not part of the tree", f.Name, v.Target))
	}
	if s.c.Kind != rszfile.KindPrefab {
		v.GUID = v.Target
		return v, nil
	}
	objectID, ok := s.objects[owner]
	if !top || !ok {
		return nil, errors.ClassReference("flatten", class.Name, fmt.Errorf("field %s: reference held by an object that is not a game object or component", f.Name))
	}
	prop, ok := s.db.RefProperties[class.Name][f.Name]
	if !ok {
		return nil, errors.Schema("flatten", class.Name, fmt.Errorf("no property id for field %s", f.Name))
	}
	s.c.GameObjectRefs = append(s.c.GameObjectRefs, container.GameObjectRefInfo{
		ObjectID:   objectID,
		PropertyID: prop,
		ArrayIndex: index,
		TargetID:   target,
	})
	return v, nil
}

// resources lists the resources of the root in their original order, then
// any further resource referenced by the table.
func (s *flattenState) resources() {
	seen := map[string]bool{}
	for _, res := range s.root.Resources {
		if !seen[res.Path] {
			seen[res.Path] = true
			s.c.Resources = append(s.c.Resources, res.Path)
		}
	}
	var visit func(t *rsz.Table)
	add := func(v rszfile.Value) {
		if p, ok := v.(rszfile.ValueResource); ok && p != "" && !seen[string(p)] {
			seen[string(p)] = true
			s.c.Resources = append(s.c.Resources, string(p))
		}
	}
	visit = func(t *rsz.Table) {
		for _, inst := range t.Instances {
			if inst.UserData != nil && inst.UserData.Table != nil {
				visit(inst.UserData.Table)
			}
			for _, v := range inst.Values {
				if arr, ok := v.(*rszfile.ValueArray); ok {
					for _, e := range arr.Values {
						add(e)
					}
					continue
				}
				add(v)
			}
		}
	}
	visit(s.c.Table)
}

// userData lists the userdata paths. With external userdata, the paths
// still referenced keep their original order and new paths follow. With
// embedded userdata, the original list is kept.
func (s *flattenState) userData() error {
	info := func(class, path string) (container.UserDataInfo, error) {
		cls := s.db.Class(class)
		if cls == nil {
			return container.UserDataInfo{}, errors.Schema("flatten", class, fmt.Errorf("unknown userdata class"))
		}
		return container.UserDataInfo{TypeID: cls.TypeID, CRC: cls.CRC, Path: path}, nil
	}

	if s.profile.EmbeddedUserdata {
		for _, ud := range s.root.Meta.UserData {
			i, err := info(ud.ClassName, ud.Path)
			if err != nil {
				return err
			}
			s.c.UserData = append(s.c.UserData, i)
		}
		return nil
	}

	type entry struct{ class, path string }
	var used []entry
	present := map[string]bool{}
	for _, ref := range s.c.Table.UserDataRefs() {
		inst := s.c.Table.Instances[ref]
		if inst.UserData.Path == "" || present[inst.UserData.Path] {
			continue
		}
		present[inst.UserData.Path] = true
		used = append(used, entry{class: inst.ClassName(), path: inst.UserData.Path})
	}
	listed := map[string]bool{}
	for _, ud := range s.root.Meta.UserData {
		if !present[ud.Path] || listed[ud.Path] {
			continue
		}
		listed[ud.Path] = true
		for _, e := range used {
			if e.path == ud.Path {
				i, err := info(e.class, e.path)
				if err != nil {
					return err
				}
				s.c.UserData = append(s.c.UserData, i)
				break
			}
		}
	}
	for _, e := range used {
		if listed[e.path] {
			continue
		}
		i, err := info(e.class, e.path)
		if err != nil {
			return err
		}
		s.c.UserData = append(s.c.UserData, i)
	}
	return nil
}
