package rsz

import (
	"fmt"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// Resolver converts the instances of a table into objects. Each instance is
// converted once, so that instances referenced from several places produce
// the same object.
type Resolver struct {
	table *Table
	memo  map[Ref]*rszfile.Object
}

// NewResolver returns a resolver over t.
func NewResolver(t *Table) *Resolver {
	return &Resolver{table: t, memo: map[Ref]*rszfile.Object{}}
}

// Table returns the table being resolved.
func (r *Resolver) Table() *Table {
	return r.table
}

// Object returns the object of the instance at ref. The null instance
// returns nil.
func (r *Resolver) Object(ref Ref) (*rszfile.Object, error) {
	if ref == 0 {
		return nil, nil
	}
	if obj, ok := r.memo[ref]; ok {
		return obj, nil
	}
	inst := r.table.Instance(ref)
	if inst == nil {
		return nil, fmt.Errorf("%w: %d", ErrRefRange, ref)
	}
	if inst.UserData != nil {
		v, err := r.userData(inst)
		if err != nil {
			return nil, err
		}
		if v.Object == nil {
			return nil, InstanceError{Index: int(ref), Class: inst.Class.Name, Cause: fmt.Errorf("external userdata has no content")}
		}
		r.memo[ref] = v.Object
		return v.Object, nil
	}

	obj := &rszfile.Object{
		ClassName: inst.Class.Name,
		Fields:    make([]rszfile.Field, len(inst.Class.Fields)),
	}
	// Stored before fields are resolved, so that a cycle resolves to the same
	// object rather than recursing.
	r.memo[ref] = obj
	for i, f := range inst.Class.Fields {
		v, err := r.Value(f.Type, inst.Values[i])
		if err != nil {
			return nil, InstanceError{Index: int(ref), Class: inst.Class.Name, Cause: ErrValue{Field: f.Name, Cause: err}}
		}
		obj.Fields[i] = rszfile.Field{Name: f.Name, Value: v}
	}
	return obj, nil
}

// Value converts a decoded value of a field of type typ, replacing
// references with the values they refer to. A reference to a userdata
// instance produces a ValueUserData; other references produce a ValueObject.
// The null reference produces the empty value of typ.
func (r *Resolver) Value(typ schema.FieldType, v rszfile.Value) (rszfile.Value, error) {
	switch v := v.(type) {
	case Ref:
		if v == 0 {
			if typ == schema.TypeUserData {
				return rszfile.ValueUserData{}, nil
			}
			return rszfile.ValueObject{}, nil
		}
		if inst := r.table.Instance(v); inst != nil && inst.UserData != nil {
			return r.userData(inst)
		}
		obj, err := r.Object(v)
		if err != nil {
			return nil, err
		}
		return rszfile.ValueObject{Object: obj}, nil
	case *rszfile.ValueArray:
		if !v.Elem.IsReference() {
			return v, nil
		}
		arr := &rszfile.ValueArray{Elem: v.Elem, Values: make([]rszfile.Value, len(v.Values))}
		for i, e := range v.Values {
			e, err := r.Value(v.Elem, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			arr.Values[i] = e
		}
		return arr, nil
	}
	return v, nil
}

func (r *Resolver) userData(inst *Instance) (rszfile.ValueUserData, error) {
	v := rszfile.ValueUserData{ClassName: inst.Class.Name, Path: inst.UserData.Path}
	if t := inst.UserData.Table; t != nil {
		if len(t.Objects) == 0 {
			return v, InstanceError{Index: -1, Class: inst.Class.Name, Cause: fmt.Errorf("embedded userdata has no root")}
		}
		obj, err := NewResolver(t).Object(t.Objects[0])
		if err != nil {
			return v, err
		}
		v.Object = obj
	}
	return v, nil
}
