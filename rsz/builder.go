package rsz

import (
	"fmt"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// Builder constructs a table from objects. Each key is constructed at most
// once; constructing a key again returns the first result. Instances are
// appended after everything they reference, so that children precede their
// parents.
type Builder struct {
	// Schema supplies the classes of objects.
	Schema *schema.Database

	table    *Table
	memo     map[any]Ref
	building map[any]bool
}

// NewBuilder returns a builder producing a table of the given version.
func NewBuilder(db *schema.Database, version uint32) *Builder {
	return &Builder{
		Schema:   db,
		table:    NewTable(version),
		memo:     map[any]Ref{},
		building: map[any]bool{},
	}
}

// Table returns the table under construction.
func (b *Builder) Table() *Table {
	return b.table
}

// Lookup returns the instance constructed for key.
func (b *Builder) Lookup(key any) (ref Ref, ok bool) {
	ref, ok = b.memo[key]
	return ref, ok
}

// Construct returns the instance for key, constructing it if needed. fill
// produces the values of the instance; instances constructed by fill are
// appended first. Reentering a key that is still being filled returns
// ErrCycle.
func (b *Builder) Construct(key any, class *schema.Class, fill func() ([]rszfile.Value, error)) (Ref, error) {
	if ref, ok := b.memo[key]; ok {
		return ref, nil
	}
	if b.building[key] {
		return 0, InstanceError{Index: -1, Class: class.Name, Cause: ErrCycle}
	}
	b.building[key] = true
	defer delete(b.building, key)

	values, err := fill()
	if err != nil {
		return 0, err
	}
	ref := b.table.Append(&Instance{Class: class, Values: values})
	b.memo[key] = ref
	return ref, nil
}

// AddObject appends ref to the object table.
func (b *Builder) AddObject(ref Ref) {
	b.table.Objects = append(b.table.Objects, ref)
}

// Object constructs the instance of obj and every object it references. The
// same object always produces the same instance. A nil object produces the
// null instance.
func (b *Builder) Object(obj *rszfile.Object) (Ref, error) {
	if obj == nil {
		return 0, nil
	}
	class := b.Schema.Class(obj.ClassName)
	if class == nil {
		return 0, InstanceError{Index: -1, Class: obj.ClassName, Cause: fmt.Errorf("unknown class")}
	}
	return b.Construct(obj, class, func() ([]rszfile.Value, error) {
		if len(obj.Fields) != len(class.Fields) {
			return nil, InstanceError{Index: -1, Class: class.Name, Cause: fmt.Errorf("object has %d fields, class has %d", len(obj.Fields), len(class.Fields))}
		}
		values := make([]rszfile.Value, len(class.Fields))
		for i, f := range class.Fields {
			if obj.Fields[i].Name != f.Name {
				return nil, InstanceError{Index: -1, Class: class.Name, Cause: fmt.Errorf("field #%d is %q, expected %q", i, obj.Fields[i].Name, f.Name)}
			}
			v, err := b.value(obj.Fields[i].Value)
			if err != nil {
				return nil, InstanceError{Index: -1, Class: class.Name, Cause: ErrValue{Field: f.Name, Cause: err}}
			}
			values[i] = v
		}
		return values, nil
	})
}

// userDataKey identifies external userdata. Equal paths share an instance.
type userDataKey struct {
	class string
	path  string
}

// embeddedKey identifies embedded userdata by its content.
type embeddedKey struct {
	obj *rszfile.Object
}

// UserData constructs the userdata instance of v.
func (b *Builder) UserData(v rszfile.ValueUserData) (Ref, error) {
	if v.IsEmpty() {
		return 0, nil
	}
	class := b.Schema.Class(v.ClassName)
	if class == nil {
		return 0, InstanceError{Index: -1, Class: v.ClassName, Cause: fmt.Errorf("unknown class")}
	}
	var key any = userDataKey{class: v.ClassName, path: v.Path}
	if v.Object != nil {
		key = embeddedKey{obj: v.Object}
	}
	if ref, ok := b.memo[key]; ok {
		return ref, nil
	}
	ud := &UserData{Path: v.Path}
	if v.Object != nil {
		nested := NewBuilder(b.Schema, b.table.Version)
		root, err := nested.Object(v.Object)
		if err != nil {
			return 0, err
		}
		nested.AddObject(root)
		ud.Table = nested.Table()
	}
	ref := b.table.Append(&Instance{Class: class, UserData: ud})
	b.memo[key] = ref
	return ref, nil
}

// value converts a field value, replacing objects with references.
func (b *Builder) value(v rszfile.Value) (rszfile.Value, error) {
	switch v := v.(type) {
	case rszfile.ValueObject:
		return b.Object(v.Object)
	case rszfile.ValueUserData:
		return b.UserData(v)
	case *rszfile.ValueArray:
		if !v.Elem.IsReference() {
			return v, nil
		}
		arr := &rszfile.ValueArray{Elem: v.Elem, Values: make([]rszfile.Value, len(v.Values))}
		for i, e := range v.Values {
			r, err := b.value(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			arr.Values[i] = r
		}
		return arr, nil
	}
	return v, nil
}
