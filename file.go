// The rszfile package holds the editable scene graph produced from and
// written to RE Engine scene, prefab and userdata files.
//
// A graph begins with a Root. A Root contains folders and game objects. A
// folder contains further folders and game objects; a game object contains
// child game objects and an ordered list of components. Folders, game objects
// and components each carry an Object: the typed field values of one engine
// class, in schema order. Every field type implements the Value interface,
// and is prefixed with "Value".
//
// References between game objects are held as ids, never as pointers, and
// are resolved against the tree with Root.FindGameObject.
//
// Roots are decoded from files by the graph sub-package, and can be created
// manually through the "declare" sub-package.
package rszfile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rszkit/rszfile/schema"
)

////////////////////////////////////////////////////////////////

// Kind is the kind of container a Root was read from or is written to.
type Kind uint8

const (
	KindScene Kind = iota
	KindPrefab
	KindUserData
)

var kindStrings = [...]string{
	KindScene:    "scn",
	KindPrefab:   "pfb",
	KindUserData: "user",
}

// String returns the file extension of the kind.
func (k Kind) String() string {
	if int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return "invalid"
}

// KindFromExt returns the kind with the given file extension.
func KindFromExt(ext string) (Kind, bool) {
	for k, s := range kindStrings {
		if s == ext {
			return Kind(k), true
		}
	}
	return 0, false
}

// Meta records layout details of the file a Root was read from, so that an
// unedited Root is written back the same way.
type Meta struct {
	Game schema.Game
	Kind Kind
	// Version is the numeric extension suffix of the file.
	Version int
	// RSZVersion is the version of the RSZ block.
	RSZVersion uint32

	// NullSlot indicates that the first object table entry is the null
	// instance, so that object ids start at 1.
	NullSlot bool
	// RootParent is the parent id written for root-level nodes, either 0 or
	// -1.
	RootParent int32

	// Prefabs and UserData hold the path tables of the file in their
	// original order. Paths referenced by the graph but missing here are
	// appended when written.
	Prefabs  []string
	UserData []UserDataPath
}

// UserDataPath is an entry of the userdata table of a file.
type UserDataPath struct {
	ClassName string
	Path      string
}

// Resource is a file referenced by the graph, such as a mesh or a texture.
type Resource struct {
	// Path is the in-engine path.
	Path string
	// Source is the resolved file path, if any.
	Source string
	// Missing indicates that Path could not be resolved.
	Missing bool
}

////////////////////////////////////////////////////////////////

// Node is a folder or a game object.
type Node interface {
	// Name returns the name of the node.
	Name() string
	// Parent returns the folder or game object containing the node, or nil
	// if the node is at the root or detached.
	Parent() Node

	setParent(container)
	getParent() container
}

// container is anything that holds nodes.
type container interface {
	removeChild(Node)
}

var (
	ErrCycle        = errors.New("node would contain itself")
	ErrNotChildable = errors.New("node cannot be a child of a game object")
	ErrOwned        = errors.New("component is attached to another game object")
)

// checkAncestry returns ErrCycle if child is self or one of its ancestors.
func checkAncestry(self Node, child Node) error {
	var n Node = self
	for n != nil {
		if n == child {
			return ErrCycle
		}
		n = n.Parent()
	}
	return nil
}

// detach removes n from its current container.
func detach(n Node) {
	if p := n.getParent(); p != nil {
		p.removeChild(n)
		n.setParent(nil)
	}
}

func nameOf(data *Object) string {
	if data == nil {
		return ""
	}
	return data.GetString("Name")
}

////////////////////////////////////////////////////////////////

// Root represents the root of a scene graph.
type Root struct {
	Meta Meta

	// Resources lists the resources of the file, in file order.
	Resources []*Resource

	// UserData is the content of a userdata file.
	UserData *Object

	mu       sync.Mutex
	children []Node
}

// NewRoot returns an empty root for the given game and kind.
func NewRoot(game schema.Game, kind Kind) *Root {
	return &Root{Meta: Meta{Game: game, Kind: kind, RootParent: -1}}
}

// AddChild appends a folder or game object to the root. The node is removed
// from its previous container.
func (r *Root) AddChild(n Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	detach(n)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = append(r.children, n)
	n.setParent(r)
	return nil
}

func (r *Root) removeChild(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = removeNode(r.children, n)
}

// Children returns the root-level nodes in order.
func (r *Root) Children() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]Node, len(r.children))
	copy(list, r.children)
	return list
}

// Clear removes every root-level node.
func (r *Root) Clear() {
	r.mu.Lock()
	children := r.children
	r.children = nil
	r.mu.Unlock()
	for _, c := range children {
		c.setParent(nil)
	}
}

// Resource returns the resource with the given path, or nil.
func (r *Root) Resource(path string) *Resource {
	for _, res := range r.Resources {
		if res.Path == path {
			return res
		}
	}
	return nil
}

// AddResource returns the resource with the given path, adding it if it is
// not present.
func (r *Root) AddResource(path string) *Resource {
	if res := r.Resource(path); res != nil {
		return res
	}
	res := &Resource{Path: path}
	r.Resources = append(r.Resources, res)
	return res
}

func removeNode(list []Node, n Node) []Node {
	for i, c := range list {
		if c == n {
			list[i] = nil
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

////////////////////////////////////////////////////////////////

// LoadFunc loads the scene linked by a folder.
type LoadFunc func(ctx context.Context, path string) (*Root, error)

// FolderLinkField is the field of a folder's data holding the path of a
// linked scene.
const FolderLinkField = "Path"

// Folder groups folders and game objects. A folder whose data links another
// scene is a proxy for that scene, which is loaded only on request.
type Folder struct {
	// Data is the folder's typed data.
	Data *Object

	mu       sync.Mutex
	children []Node
	parent   container

	loader LoadFunc
	linked *Root
}

// NewFolder returns a folder with the given data.
func NewFolder(data *Object) *Folder {
	return &Folder{Data: data}
}

func (f *Folder) Name() string {
	return nameOf(f.Data)
}

func (f *Folder) String() string {
	if name := f.Name(); name != "" {
		return name
	}
	return "Folder"
}

func (f *Folder) Parent() Node {
	p, _ := f.getParent().(Node)
	return p
}

func (f *Folder) setParent(p container) {
	f.mu.Lock()
	f.parent = p
	f.mu.Unlock()
}

func (f *Folder) getParent() container {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parent
}

// AddChild appends a folder or game object to the folder. The node is
// removed from its previous container. Returns ErrCycle if the node is the
// folder or one of its ancestors.
func (f *Folder) AddChild(n Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	if err := checkAncestry(f, n); err != nil {
		return err
	}
	detach(n)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children = append(f.children, n)
	n.setParent(f)
	return nil
}

func (f *Folder) removeChild(n Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children = removeNode(f.children, n)
}

// Children returns the folder's children in order.
func (f *Folder) Children() []Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]Node, len(f.children))
	copy(list, f.children)
	return list
}

// Clear removes every child of the folder and drops any loaded linked scene.
func (f *Folder) Clear() {
	f.mu.Lock()
	children := f.children
	f.children = nil
	f.linked = nil
	f.mu.Unlock()
	for _, c := range children {
		c.setParent(nil)
	}
}

// Link returns the path of the scene linked by the folder, or an empty
// string.
func (f *Folder) Link() string {
	return f.Data.GetString(FolderLinkField)
}

// IsProxy returns whether the folder links another scene.
func (f *Folder) IsProxy() bool {
	return f.Link() != ""
}

// SetLoader sets the function used by Load.
func (f *Folder) SetLoader(fn LoadFunc) {
	f.mu.Lock()
	f.loader = fn
	f.mu.Unlock()
}

// Load loads the linked scene, if it has not already been loaded. The linked
// scene is held apart from the folder's children, and is not written with
// the folder.
func (f *Folder) Load(ctx context.Context) (*Root, error) {
	link := f.Link()
	if link == "" {
		return nil, fmt.Errorf("folder %q is not linked", f.Name())
	}
	f.mu.Lock()
	if f.linked != nil {
		defer f.mu.Unlock()
		return f.linked, nil
	}
	load := f.loader
	f.mu.Unlock()
	if load == nil {
		return nil, fmt.Errorf("folder %q has no loader", f.Name())
	}

	root, err := load(ctx, link)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linked == nil {
		f.linked = root
	}
	return f.linked, nil
}

// Linked returns the loaded linked scene, or nil if it has not been loaded.
func (f *Folder) Linked() *Root {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linked
}

////////////////////////////////////////////////////////////////

// GameObject is an object in a scene, with child game objects and an ordered
// list of components.
type GameObject struct {
	// ID identifies the game object within its tree. For scenes, this is the
	// GUID stored in the file.
	ID uuid.UUID

	// Data is the game object's typed data.
	Data *Object

	// Prefab is the path of the prefab the game object was created from.
	Prefab string

	// Placeholder indicates that the game object stands in for content that
	// could not be loaded.
	Placeholder bool

	// Inherited indicates that the game object was copied from the prefab of
	// an ancestor. Inherited game objects are not written to files.
	Inherited bool

	mu         sync.Mutex
	children   []*GameObject
	components []*Component
	parent     container
}

// NewGameObject returns a game object with the given data and a new id.
func NewGameObject(data *Object) *GameObject {
	return &GameObject{ID: uuid.New(), Data: data}
}

func (g *GameObject) Name() string {
	return nameOf(g.Data)
}

func (g *GameObject) String() string {
	if name := g.Name(); name != "" {
		return name
	}
	return "GameObject"
}

func (g *GameObject) Parent() Node {
	p, _ := g.getParent().(Node)
	return p
}

func (g *GameObject) setParent(p container) {
	g.mu.Lock()
	g.parent = p
	g.mu.Unlock()
}

func (g *GameObject) getParent() container {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.parent
}

// AddChild appends a game object to the children of g. The child is removed
// from its previous container. Folders cannot be children of game objects.
// Returns ErrCycle if the child is g or one of its ancestors.
func (g *GameObject) AddChild(n Node) error {
	child, ok := n.(*GameObject)
	if !ok {
		return ErrNotChildable
	}
	if child == nil {
		return errors.New("nil node")
	}
	if err := checkAncestry(g, child); err != nil {
		return err
	}
	detach(child)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.children = append(g.children, child)
	child.setParent(g)
	return nil
}

func (g *GameObject) removeChild(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range g.children {
		if c == n {
			g.children[i] = nil
			g.children = append(g.children[:i], g.children[i+1:]...)
			return
		}
	}
}

// Children returns the child game objects in order.
func (g *GameObject) Children() []*GameObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]*GameObject, len(g.children))
	copy(list, g.children)
	return list
}

// AddComponent appends a component to g. Returns ErrOwned if the component
// belongs to another game object.
func (g *GameObject) AddComponent(c *Component) error {
	if c == nil {
		return errors.New("nil component")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c.owner != nil && c.owner != g {
		return ErrOwned
	}
	if c.owner == g {
		return nil
	}
	c.owner = g
	g.components = append(g.components, c)
	return nil
}

// RemoveComponent detaches a component from g.
func (g *GameObject) RemoveComponent(c *Component) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, comp := range g.components {
		if comp == c {
			g.components = append(g.components[:i], g.components[i+1:]...)
			c.owner = nil
			return
		}
	}
}

// Components returns the components of g in order.
func (g *GameObject) Components() []*Component {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]*Component, len(g.components))
	copy(list, g.components)
	return list
}

// GetComponent returns the first component of the given class, or nil.
func (g *GameObject) GetComponent(className string) *Component {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.components {
		if c.ClassName() == className {
			return c
		}
	}
	return nil
}

// Clear removes every child and component of g.
func (g *GameObject) Clear() {
	g.mu.Lock()
	children := g.children
	components := g.components
	g.children = nil
	g.components = nil
	g.mu.Unlock()
	for _, c := range children {
		c.setParent(nil)
	}
	for _, c := range components {
		c.owner = nil
	}
}

// Clone returns a detached deep copy of g and its descendants. Copies receive
// new ids, and references between copied game objects are remapped to the
// copies. Behaviors are not copied.
func (g *GameObject) Clone() *GameObject {
	ids := map[uuid.UUID]uuid.UUID{}
	seen := map[*Object]*Object{}
	c := g.clone(ids, seen)
	c.remap(ids, map[*Object]bool{})
	return c
}

func (g *GameObject) clone(ids map[uuid.UUID]uuid.UUID, seen map[*Object]*Object) *GameObject {
	c := &GameObject{
		ID:          uuid.New(),
		Data:        copyObject(g.Data, seen),
		Prefab:      g.Prefab,
		Placeholder: g.Placeholder,
		Inherited:   g.Inherited,
	}
	ids[g.ID] = c.ID
	for _, comp := range g.Components() {
		cc := &Component{Data: copyObject(comp.Data, seen), Inherited: comp.Inherited, owner: c}
		c.components = append(c.components, cc)
	}
	for _, child := range g.Children() {
		cc := child.clone(ids, seen)
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}

func (g *GameObject) remap(ids map[uuid.UUID]uuid.UUID, seen map[*Object]bool) {
	remapObject(g.Data, ids, seen)
	for _, comp := range g.components {
		remapObject(comp.Data, ids, seen)
	}
	for _, child := range g.children {
		child.remap(ids, seen)
	}
}

func remapObject(obj *Object, ids map[uuid.UUID]uuid.UUID, seen map[*Object]bool) {
	walkObject(obj, seen, func(o *Object) {
		for i, f := range o.Fields {
			o.Fields[i].Value = remapValue(f.Value, ids)
		}
	})
}

func remapValue(v Value, ids map[uuid.UUID]uuid.UUID) Value {
	switch v := v.(type) {
	case ValueGameObjectRef:
		if id, ok := ids[v.ID()]; ok {
			v.Target = id
		}
		return v
	case *ValueArray:
		for i, e := range v.Values {
			v.Values[i] = remapValue(e, ids)
		}
	}
	return v
}

////////////////////////////////////////////////////////////////

// Behavior is specialized logic attached to a component of a known class.
type Behavior interface {
	// Kind names the behavior.
	Kind() string
}

// Component is typed data attached to a game object. A component without a
// Behavior is a placeholder that still carries its data.
type Component struct {
	// Data is the component's typed data.
	Data *Object

	// Behavior is the specialized logic of the component, if any.
	Behavior Behavior

	// Inherited indicates that the component was copied from the prefab of
	// its game object. Inherited components are not written to files.
	Inherited bool

	owner *GameObject
}

// NewComponent returns a detached component with the given data.
func NewComponent(data *Object) *Component {
	return &Component{Data: data}
}

// ClassName returns the class of the component's data.
func (c *Component) ClassName() string {
	if c.Data == nil {
		return ""
	}
	return c.Data.ClassName
}

// Owner returns the game object the component is attached to.
func (c *Component) Owner() *GameObject {
	return c.owner
}

// IsPlaceholder returns whether the component has no specialized behavior.
func (c *Component) IsPlaceholder() bool {
	return c.Behavior == nil
}

func (c *Component) String() string {
	return c.ClassName()
}
