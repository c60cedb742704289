package rsz

import (
	"strconv"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/schema"
)

// Ref is the index of an instance within a table. Ref 0 is the null
// instance. Decoded Object and UserData fields hold a Ref.
type Ref int32

// Type returns TypeObject. A Ref is also held by UserData fields; the field
// decides.
func (Ref) Type() schema.FieldType {
	return schema.TypeObject
}
func (r Ref) String() string {
	return "#" + strconv.Itoa(int(r))
}
func (r Ref) Copy() rszfile.Value {
	return r
}

// IsNull returns whether the reference is empty.
func (r Ref) IsNull() bool {
	return r == 0
}

// UserData is the userdata record of an instance whose content is held
// outside of the instance list.
type UserData struct {
	// Path is the in-engine path of an external userdata file.
	Path string
	// Hash identifies embedded userdata.
	Hash uint32
	// Table is the content of embedded userdata.
	Table *Table
}

// Instance is one entry of a table.
type Instance struct {
	// Class is the schema of the instance. The null instance has no class.
	Class *schema.Class

	// Values holds one value per field of Class, in field order. Array
	// fields hold a *rszfile.ValueArray.
	Values []rszfile.Value

	// UserData is set if the content of the instance is delegated to
	// userdata. Values is then empty.
	UserData *UserData
}

// ClassName returns the name of the class of the instance, or an empty
// string for the null instance.
func (inst *Instance) ClassName() string {
	if inst == nil || inst.Class == nil {
		return ""
	}
	return inst.Class.Name
}

// IsNull returns whether inst is the null instance.
func (inst *Instance) IsNull() bool {
	return inst == nil || inst.Class == nil
}

// Table is a decoded RSZ block: an instance list and the object table of
// root-reachable instances.
type Table struct {
	// Version is the RSZ version of the block.
	Version uint32

	// Instances is the instance list. The first instance is always the null
	// instance.
	Instances []*Instance

	// Objects is the object table.
	Objects []Ref
}

// NewTable returns a table containing only the null instance.
func NewTable(version uint32) *Table {
	return &Table{
		Version:   version,
		Instances: []*Instance{{}},
	}
}

// Instance returns the instance at ref, or nil if ref is out of range.
func (t *Table) Instance(ref Ref) *Instance {
	if ref < 0 || int(ref) >= len(t.Instances) {
		return nil
	}
	return t.Instances[ref]
}

// Append adds an instance to the end of the table and returns its index.
func (t *Table) Append(inst *Instance) Ref {
	t.Instances = append(t.Instances, inst)
	return Ref(len(t.Instances) - 1)
}

// UserDataRefs returns the indices of instances delegated to userdata, in
// table order.
func (t *Table) UserDataRefs() []Ref {
	var refs []Ref
	for i, inst := range t.Instances {
		if inst.UserData != nil {
			refs = append(refs, Ref(i))
		}
	}
	return refs
}

// ForEachRef calls fn with every reference held by an instance's values.
func (inst *Instance) ForEachRef(fn func(field int, elem int, ref Ref)) {
	if inst.Class == nil {
		return
	}
	for i, v := range inst.Values {
		if i >= len(inst.Class.Fields) || !inst.Class.Fields[i].Type.IsReference() {
			continue
		}
		switch v := v.(type) {
		case Ref:
			fn(i, -1, v)
		case *rszfile.ValueArray:
			for j, e := range v.Values {
				if r, ok := e.(Ref); ok {
					fn(i, j, r)
				}
			}
		}
	}
}
