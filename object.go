package rszfile

import (
	"github.com/rszkit/rszfile/schema"
)

// Field is a named value of an object.
type Field struct {
	Name  string
	Value Value
}

// Object is the typed data of an instance. Fields are in the order defined by
// the class schema.
type Object struct {
	// ClassName indicates the object's type.
	ClassName string

	// Fields contains the values of the object in schema order.
	Fields []Field
}

// NewObject returns an object of the given class with every field set to its
// zero value.
func NewObject(class *schema.Class) *Object {
	obj := &Object{
		ClassName: class.Name,
		Fields:    make([]Field, len(class.Fields)),
	}
	for i, f := range class.Fields {
		obj.Fields[i] = Field{Name: f.Name, Value: ZeroValue(f)}
	}
	return obj
}

// Index returns the index of the named field, or -1.
func (obj *Object) Index(name string) int {
	for i, f := range obj.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a field. The value will be nil if the field is
// not defined.
func (obj *Object) Get(name string) Value {
	if obj == nil {
		return nil
	}
	if i := obj.Index(name); i >= 0 {
		return obj.Fields[i].Value
	}
	return nil
}

// Set sets the value of a field. If the field is not defined, it is appended.
func (obj *Object) Set(name string, value Value) {
	if i := obj.Index(name); i >= 0 {
		obj.Fields[i].Value = value
		return
	}
	obj.Fields = append(obj.Fields, Field{Name: name, Value: value})
}

// GetString returns the value of a string or resource field, or an empty
// string if the field is neither.
func (obj *Object) GetString(name string) string {
	switch v := obj.Get(name).(type) {
	case ValueString:
		return string(v)
	case ValueResource:
		return string(v)
	}
	return ""
}

// Copy returns a deep copy of the object. Objects shared within the copied
// graph remain shared within the copy.
func (obj *Object) Copy() *Object {
	return copyObject(obj, map[*Object]*Object{})
}

func copyObject(obj *Object, seen map[*Object]*Object) *Object {
	if obj == nil {
		return nil
	}
	if c, ok := seen[obj]; ok {
		return c
	}
	c := &Object{ClassName: obj.ClassName, Fields: make([]Field, len(obj.Fields))}
	seen[obj] = c
	for i, f := range obj.Fields {
		c.Fields[i] = Field{Name: f.Name, Value: copyValue(f.Value, seen)}
	}
	return c
}

func copyValue(v Value, seen map[*Object]*Object) Value {
	switch v := v.(type) {
	case ValueObject:
		return ValueObject{Object: copyObject(v.Object, seen)}
	case ValueUserData:
		v.Object = copyObject(v.Object, seen)
		return v
	case *ValueArray:
		c := &ValueArray{Elem: v.Elem, Values: make([]Value, len(v.Values))}
		for i, e := range v.Values {
			c.Values[i] = copyValue(e, seen)
		}
		return c
	case nil:
		return nil
	}
	return v.Copy()
}

// Walk calls fn for obj and every object reachable from its fields, each
// once, children before parents.
func (obj *Object) Walk(fn func(*Object)) {
	walkObject(obj, map[*Object]bool{}, fn)
}

func walkObject(obj *Object, seen map[*Object]bool, fn func(*Object)) {
	if obj == nil || seen[obj] {
		return
	}
	seen[obj] = true
	for _, f := range obj.Fields {
		walkValue(f.Value, seen, fn)
	}
	fn(obj)
}

func walkValue(v Value, seen map[*Object]bool, fn func(*Object)) {
	switch v := v.(type) {
	case ValueObject:
		walkObject(v.Object, seen, fn)
	case ValueUserData:
		walkObject(v.Object, seen, fn)
	case *ValueArray:
		for _, e := range v.Values {
			walkValue(e, seen, fn)
		}
	}
}
