// The json package is used to encode and decode rszfile graphs to the JSON
// format.
//
// Objects are written inline where first met. An object met again is
// written as a reference to the id of its first occurrence, so that shared
// objects stay shared when decoded.
package json

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// The current version of the schema.
const jsonVersion = 0

type jsonRoot struct {
	Version   int         `json:"rszfile_version"`
	Game      schema.Game `json:"game"`
	Kind      string      `json:"kind"`
	Meta      jsonMeta    `json:"meta"`
	Resources []string    `json:"resources,omitempty"`
	UserData  interface{} `json:"userdata,omitempty"`
	Nodes     []jsonNode  `json:"nodes,omitempty"`
}

type jsonMeta struct {
	Version    int                    `json:"version"`
	RSZVersion uint32                 `json:"rsz_version"`
	NullSlot   bool                   `json:"null_slot"`
	RootParent int32                  `json:"root_parent"`
	Prefabs    []string               `json:"prefabs,omitempty"`
	UserData   []rszfile.UserDataPath `json:"userdata,omitempty"`
}

type jsonNode struct {
	Folder      interface{}   `json:"folder,omitempty"`
	GameObject  interface{}   `json:"gameobject,omitempty"`
	ID          *uuid.UUID    `json:"id,omitempty"`
	Prefab      string        `json:"prefab,omitempty"`
	Placeholder bool          `json:"placeholder,omitempty"`
	Components  []interface{} `json:"components,omitempty"`
	Children    []jsonNode    `json:"children,omitempty"`
}

// Encode returns the JSON form of root.
func Encode(root *rszfile.Root) (b []byte, err error) {
	return json.Marshal(RootToJSON(root))
}

// EncodeIndent is like Encode, but indents the output.
func EncodeIndent(root *rszfile.Root) (b []byte, err error) {
	return json.MarshalIndent(RootToJSON(root), "", "\t")
}

// Decode returns the graph encoded in b.
func Decode(b []byte) (root *rszfile.Root, err error) {
	var v jsonRoot
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return rootFromJSON(v)
}

// encoder numbers objects as they are met.
type encoder struct {
	ids map[*rszfile.Object]int
}

// RootToJSON converts a rszfile.Root to a value that can be read by
// json.Marshal.
func RootToJSON(root *rszfile.Root) interface{} {
	e := &encoder{ids: map[*rszfile.Object]int{}}
	v := jsonRoot{
		Version: jsonVersion,
		Game:    root.Meta.Game,
		Kind:    root.Meta.Kind.String(),
		Meta: jsonMeta{
			Version:    root.Meta.Version,
			RSZVersion: root.Meta.RSZVersion,
			NullSlot:   root.Meta.NullSlot,
			RootParent: root.Meta.RootParent,
			Prefabs:    root.Meta.Prefabs,
			UserData:   root.Meta.UserData,
		},
	}
	for _, res := range root.Resources {
		v.Resources = append(v.Resources, res.Path)
	}
	if root.UserData != nil {
		v.UserData = e.object(root.UserData)
	}
	for _, n := range root.Children() {
		v.Nodes = append(v.Nodes, e.node(n))
	}
	return v
}

func (e *encoder) node(n rszfile.Node) jsonNode {
	var v jsonNode
	switch n := n.(type) {
	case *rszfile.Folder:
		v.Folder = e.object(n.Data)
		for _, child := range n.Children() {
			v.Children = append(v.Children, e.node(child))
		}
	case *rszfile.GameObject:
		id := n.ID
		v.GameObject = e.object(n.Data)
		v.ID = &id
		v.Prefab = n.Prefab
		v.Placeholder = n.Placeholder
		// Content inherited from a prefab is not part of the file.
		for _, c := range n.Components() {
			if !c.Inherited {
				v.Components = append(v.Components, e.object(c.Data))
			}
		}
		for _, child := range n.Children() {
			if !child.Inherited {
				v.Children = append(v.Children, e.node(child))
			}
		}
	}
	return v
}

func (e *encoder) object(obj *rszfile.Object) interface{} {
	if obj == nil {
		return nil
	}
	if id, ok := e.ids[obj]; ok {
		return map[string]interface{}{"ref": float64(id)}
	}
	id := len(e.ids)
	e.ids[obj] = id
	fields := make([]interface{}, len(obj.Fields))
	for i, f := range obj.Fields {
		fields[i] = e.field(f)
	}
	return map[string]interface{}{
		"id":     float64(id),
		"class":  obj.ClassName,
		"fields": fields,
	}
}

func (e *encoder) field(f rszfile.Field) interface{} {
	v := map[string]interface{}{"name": f.Name}
	if f.Value == nil {
		return v
	}
	v["type"] = f.Value.Type().String()
	if a, ok := f.Value.(*rszfile.ValueArray); ok {
		v["array"] = true
		values := make([]interface{}, len(a.Values))
		for i, elem := range a.Values {
			values[i] = e.value(elem)
		}
		v["value"] = values
		return v
	}
	v["value"] = e.value(f.Value)
	return v
}

// ValueToJSON converts a value to a form that can be read by json.Marshal.
// Nested objects are not numbered.
func ValueToJSON(value rszfile.Value) interface{} {
	e := &encoder{ids: map[*rszfile.Object]int{}}
	return e.value(value)
}

func (e *encoder) value(value rszfile.Value) interface{} {
	switch value := value.(type) {
	case rszfile.ValueObject:
		return e.object(value.Object)
	case rszfile.ValueUserData:
		if value.IsEmpty() {
			return nil
		}
		v := map[string]interface{}{"class": value.ClassName}
		if value.Path != "" {
			v["path"] = value.Path
		}
		if value.Object != nil {
			v["object"] = e.object(value.Object)
		}
		return v
	}
	return scalarToJSON(value)
}

// decoder resolves object references while decoding.
type decoder struct {
	objects map[int]*rszfile.Object
}

// rootFromJSON converts the decoded JSON form of a graph to a rszfile.Root.
func rootFromJSON(v jsonRoot) (*rszfile.Root, error) {
	if v.Version != jsonVersion {
		return nil, errors.New("unsupported rszfile_version")
	}
	kind, ok := rszfile.KindFromExt(v.Kind)
	if !ok {
		return nil, errors.New("invalid kind " + v.Kind)
	}
	root := rszfile.NewRoot(v.Game, kind)
	root.Meta.Version = v.Meta.Version
	root.Meta.RSZVersion = v.Meta.RSZVersion
	root.Meta.NullSlot = v.Meta.NullSlot
	root.Meta.RootParent = v.Meta.RootParent
	root.Meta.Prefabs = v.Meta.Prefabs
	root.Meta.UserData = v.Meta.UserData
	for _, path := range v.Resources {
		root.AddResource(path)
	}

	d := &decoder{objects: map[int]*rszfile.Object{}}
	if v.UserData != nil {
		obj, ok := d.object(v.UserData)
		if !ok {
			return nil, errors.New("invalid userdata object")
		}
		root.UserData = obj
	}
	for _, jn := range v.Nodes {
		n, err := d.node(jn)
		if err != nil {
			return nil, err
		}
		if err := root.AddChild(n); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (d *decoder) node(v jsonNode) (rszfile.Node, error) {
	switch {
	case v.Folder != nil:
		data, ok := d.object(v.Folder)
		if !ok {
			return nil, errors.New("invalid folder object")
		}
		f := rszfile.NewFolder(data)
		for _, jc := range v.Children {
			child, err := d.node(jc)
			if err != nil {
				return nil, err
			}
			if err := f.AddChild(child); err != nil {
				return nil, err
			}
		}
		return f, nil
	case v.GameObject != nil:
		data, ok := d.object(v.GameObject)
		if !ok {
			return nil, errors.New("invalid game object")
		}
		g := rszfile.NewGameObject(data)
		if v.ID != nil {
			g.ID = *v.ID
		}
		g.Prefab = v.Prefab
		g.Placeholder = v.Placeholder
		for _, jc := range v.Components {
			data, ok := d.object(jc)
			if !ok {
				return nil, errors.New("invalid component object")
			}
			if err := g.AddComponent(rszfile.NewComponent(data)); err != nil {
				return nil, err
			}
		}
		for _, jc := range v.Children {
			child, err := d.node(jc)
			if err != nil {
				return nil, err
			}
			if err := g.AddChild(child); err != nil {
				return nil, err
			}
		}
		return g, nil
	}
	return nil, errors.New("node is neither a folder nor a game object")
}

func (d *decoder) object(iobj interface{}) (*rszfile.Object, bool) {
	var id float64
	if indexJSON(iobj, "ref", &id) {
		obj, ok := d.objects[int(id)]
		return obj, ok
	}
	obj := &rszfile.Object{}
	if !indexJSON(iobj, "class", &obj.ClassName) {
		return nil, false
	}
	if indexJSON(iobj, "id", &id) {
		d.objects[int(id)] = obj
	}
	var fields []interface{}
	indexJSON(iobj, "fields", &fields)
	obj.Fields = make([]rszfile.Field, 0, len(fields))
	for _, ifield := range fields {
		f, ok := d.field(ifield)
		if !ok {
			return nil, false
		}
		obj.Fields = append(obj.Fields, f)
	}
	return obj, true
}

func (d *decoder) field(ifield interface{}) (f rszfile.Field, ok bool) {
	if !indexJSON(ifield, "name", &f.Name) {
		return f, false
	}
	var typeName string
	if !indexJSON(ifield, "type", &typeName) {
		return f, true
	}
	typ := schema.FieldTypeFromString(typeName)
	var ivalue interface{}
	indexJSON(ifield, "value", &ivalue)
	var array bool
	if indexJSON(ifield, "array", &array) && array {
		a := rszfile.NewArray(typ)
		ivalues, _ := ivalue.([]interface{})
		for _, ielem := range ivalues {
			v, ok := d.value(typ, ielem)
			if !ok {
				return f, false
			}
			a.Append(v)
		}
		f.Value = a
		return f, true
	}
	f.Value, ok = d.value(typ, ivalue)
	return f, ok
}

func (d *decoder) value(typ schema.FieldType, ivalue interface{}) (rszfile.Value, bool) {
	switch typ {
	case schema.TypeObject:
		if ivalue == nil {
			return rszfile.ValueObject{}, true
		}
		obj, ok := d.object(ivalue)
		return rszfile.ValueObject{Object: obj}, ok
	case schema.TypeUserData:
		var v rszfile.ValueUserData
		if ivalue == nil {
			return v, true
		}
		if !indexJSON(ivalue, "class", &v.ClassName) {
			return v, false
		}
		indexJSON(ivalue, "path", &v.Path)
		var iobj interface{}
		if indexJSON(ivalue, "object", &iobj) && iobj != nil {
			obj, ok := d.object(iobj)
			if !ok {
				return v, false
			}
			v.Object = obj
		}
		return v, true
	}
	v := ValueFromJSON(typ, ivalue)
	return v, v != nil
}
