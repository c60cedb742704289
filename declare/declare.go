// The declare package is used to generate rszfile structures in a declarative
// style.
//
// Most items have a Declare method, which returns a new rszfile structure
// corresponding to the declared item. Field values are converted according to
// the class schema of the game, so declarations name only fields and values.
//
// The easiest way to use this package is to import it directly into the
// current package:
//
//	import . "github.com/rszkit/rszfile/declare"
//
// This allows the package's identifiers to be used directly without a
// qualifier.
package declare

import (
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// Class names of the data of folders and game objects.
const (
	FolderClass     = "via.Folder"
	GameObjectClass = "via.GameObject"
)

// primary is implemented by declarations that can be directly within a Root
// declaration.
type primary interface {
	primary()
}

// Root declares a rszfile.Root. It is a list that contains Folder,
// GameObject and Resource declarations.
type Root []primary

// state carries references and pending properties while a declaration is
// evaluated. Properties are evaluated last, so that a reference may name a
// game object declared after it.
type state struct {
	db      *schema.Database
	refs    map[string]*rszfile.GameObject
	pending []pending
}

type pending struct {
	obj   *rszfile.Object
	props []property
}

func newState(db *schema.Database) *state {
	return &state{db: db, refs: map[string]*rszfile.GameObject{}}
}

// object returns a new object of a class with its properties queued.
func (s *state) object(className string, props []property) *rszfile.Object {
	var obj *rszfile.Object
	if class := s.db.Class(className); class != nil {
		obj = rszfile.NewObject(class)
	} else {
		obj = &rszfile.Object{ClassName: className}
	}
	s.pending = append(s.pending, pending{obj: obj, props: props})
	return obj
}

// resolve sets every queued property. Properties of unknown fields are
// dropped. Nested objects queue more properties while resolving.
func (s *state) resolve() {
	for i := 0; i < len(s.pending); i++ {
		p := s.pending[i]
		class := s.db.Class(p.obj.ClassName)
		for _, prop := range p.props {
			if class == nil {
				continue
			}
			f, ok := class.Field(prop.name)
			if !ok {
				continue
			}
			p.obj.Set(prop.name, s.field(f, prop.value))
		}
	}
}

func (s *state) node(p primary) rszfile.Node {
	switch p := p.(type) {
	case folder:
		return s.folder(p)
	case gameObject:
		return s.gameObject(p)
	}
	return nil
}

func (s *state) folder(d folder) *rszfile.Folder {
	props := append([]property{{name: "Name", value: []interface{}{d.name}}}, d.properties...)
	f := rszfile.NewFolder(s.object(FolderClass, props))
	for _, child := range d.children {
		f.AddChild(s.node(child))
	}
	return f
}

func (s *state) gameObject(d gameObject) *rszfile.GameObject {
	props := append([]property{{name: "Name", value: []interface{}{d.name}}}, d.properties...)
	g := rszfile.NewGameObject(s.object(GameObjectClass, props))
	g.Prefab = d.prefab
	if d.reference != "" {
		s.refs[d.reference] = g
	}
	for _, dc := range d.components {
		g.AddComponent(rszfile.NewComponent(s.object(dc.className, dc.properties)))
	}
	for _, child := range d.children {
		g.AddChild(s.gameObject(child))
	}
	return g
}

// Declare evaluates the Root declaration for a game and a kind of file,
// generating nodes, components, and field values, setting up the hierarchy,
// and resolving references.
func (droot Root) Declare(db *schema.Database, kind rszfile.Kind) *rszfile.Root {
	root := rszfile.NewRoot(db.Game, kind)
	s := newState(db)
	for _, p := range droot {
		switch p := p.(type) {
		case resource:
			root.AddResource(string(p))
		default:
			root.AddChild(s.node(p))
		}
	}
	s.resolve()
	return root
}

// resource represents the declaration of a resource path.
type resource string

func (resource) primary() {}

// Resource declares a resource of the root. Resources referenced by fields
// need not be declared; declaring them fixes their order.
func Resource(path string) resource {
	return resource(path)
}

// element is implemented by declarations that can be within a folder or
// game object declaration.
type element interface {
	element()
}

// folder represents the declaration of a rszfile.Folder.
type folder struct {
	name       string
	properties []property
	children   []primary
}

func (folder) primary() {}
func (folder) element() {}

// Folder declares a rszfile.Folder with a name, and a series of elements. An
// element can be a Property of the folder's data, or a Folder or GameObject
// declaration, which becomes a child of the folder.
func Folder(name string, elements ...element) folder {
	f := folder{name: name}
	for _, e := range elements {
		switch e := e.(type) {
		case property:
			f.properties = append(f.properties, e)
		case folder:
			f.children = append(f.children, e)
		case gameObject:
			f.children = append(f.children, e)
		}
	}
	return f
}

// Declare evaluates the Folder declaration.
func (d folder) Declare(db *schema.Database) *rszfile.Folder {
	s := newState(db)
	f := s.folder(d)
	s.resolve()
	return f
}

// gameObject represents the declaration of a rszfile.GameObject.
type gameObject struct {
	name       string
	reference  string
	prefab     string
	properties []property
	components []component
	children   []gameObject
}

func (gameObject) primary() {}
func (gameObject) element() {}

// GameObject declares a rszfile.GameObject with a name, and a series of
// elements. An element can be:
//
//   - A Property of the game object's data.
//   - A Component declaration, which is added to the game object's
//     components in order.
//   - Another GameObject declaration, which becomes a child.
//   - A Ref declaration, which names the game object for GameObjectRef
//     fields.
//   - A Prefab declaration, which sets the prefab path of the game object.
func GameObject(name string, elements ...element) gameObject {
	g := gameObject{name: name}
	for _, e := range elements {
		switch e := e.(type) {
		case Ref:
			g.reference = string(e)
		case Prefab:
			g.prefab = string(e)
		case property:
			g.properties = append(g.properties, e)
		case component:
			g.components = append(g.components, e)
		case gameObject:
			g.children = append(g.children, e)
		}
	}
	return g
}

// Declare evaluates the GameObject declaration. References may only name
// game objects within the declaration.
func (d gameObject) Declare(db *schema.Database) *rszfile.GameObject {
	s := newState(db)
	g := s.gameObject(d)
	s.resolve()
	return g
}

// component represents the declaration of a rszfile.Component.
type component struct {
	className  string
	properties []property
}

func (component) element() {}

// Component declares a rszfile.Component of a class, with a series of
// properties.
func Component(className string, properties ...property) component {
	return component{className: className, properties: properties}
}

// object represents the declaration of a nested rszfile.Object.
type object struct {
	className  string
	properties []property
}

// Object declares a nested object, to be used as the value of an Object
// field. Each Object declaration evaluates to a distinct instance; share an
// instance by passing the same *rszfile.Object instead.
func Object(className string, properties ...property) object {
	return object{className: className, properties: properties}
}

// UserData returns a reference to the external userdata file at path.
func UserData(className, path string) rszfile.ValueUserData {
	return rszfile.ValueUserData{ClassName: className, Path: path}
}

type property struct {
	name  string
	value []interface{}
}

func (property) element() {}

// Property declares a field of the data of a folder, game object, component
// or object. The field's type is taken from the class schema; properties of
// fields the class does not define are dropped.
//
// The value may be a single rszfile.Value of the field's type, in which case
// the value itself is used. Otherwise, values must be as follows, where
// "number" is any integer or floating-point type. Values that cannot be
// converted produce the zero value of the field.
//
//	Bool:
//	    A single bool.
//
//	S8, U8, S16, U16, S32, U32, S64, U64, F16, F32, F64, Sfix:
//	    A single number.
//
//	String, Resource:
//	    A single string or []byte.
//
//	Data:
//	    A single []byte, sized to the field.
//
//	Guid, Uri:
//	    A uuid.UUID or a string in UUID form.
//
//	GameObjectRef:
//	    A string naming a Ref declaration, a *rszfile.GameObject, or a
//	    uuid.UUID stored as is.
//
//	Vec2, Float2, Point, Size, Range, RangeI, Int2, Uint2, Sfix2:
//	    2 numbers.
//
//	Vec3, Float3, Int3, Uint3, Position, Sfix3:
//	    3 numbers.
//
//	Vec4, Float4, Int4, Rect, Sfix4:
//	    4 numbers.
//
//	Quaternion:
//	    4 numbers, corresponding to X, Y, Z and W.
//
//	Color:
//	    3 or 4 numbers, corresponding to R, G, B and A. A defaults to 255.
//
//	AABB:
//	    6 numbers, the minimum then the maximum corner.
//
//	Sphere:
//	    4 numbers, the center then the radius.
//
//	Capsule:
//	    7 numbers, the start, the end, then the radius.
//
//	Mat4:
//	    16 numbers, column by column.
//
//	OBB:
//	    19 numbers, the 16 of the coordinate frame then the 3 of the extent.
//
//	Object:
//	    An Object declaration, or a *rszfile.Object.
//
//	UserData:
//	    A rszfile.ValueUserData, such as returned by UserData.
//
// For array fields, each value is one element. An element needing several
// values is given as a []interface{}.
func Property(name string, value ...interface{}) property {
	return property{name: name, value: value}
}

// Ref declares a string that can be used to refer to the GameObject under
// which it was declared.
type Ref string

func (Ref) element() {}

// Prefab declares the prefab path of the GameObject under which it was
// declared.
type Prefab string

func (Prefab) element() {}
