package schema

// Field describes one serialized field of a class. Field order within a
// class is the on-disk order.
type Field struct {
	// Name is the serialized name of the field.
	Name string `json:"name"`
	// Type is the value tag.
	Type FieldType `json:"type"`
	// OriginalType is the engine type the field was generated from, such as
	// an enum name. Informational.
	OriginalType string `json:"original_type"`
	// Array indicates a count-prefixed sequence of values.
	Array bool `json:"array"`
	// Align is the byte alignment of the value (of each element for
	// arrays).
	Align int `json:"align"`
	// Size is the byte size of the value (of each element for arrays).
	Size int `json:"size"`
	// Native marks fields that the engine serializes natively.
	Native bool `json:"native"`
}

// Class is the schema of one engine type. A Class is immutable once loaded
// and is shared by every instance of the type.
type Class struct {
	Name   string
	TypeID uint32
	CRC    uint32
	Fields []Field
}

// FieldIndex returns the index of the field with the given name, or -1.
func (c *Class) FieldIndex(name string) int {
	for i, f := range c.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Field returns the field with the given name.
func (c *Class) Field(name string) (Field, bool) {
	if i := c.FieldIndex(name); i >= 0 {
		return c.Fields[i], true
	}
	return Field{}, false
}

// HasReferences returns whether any field of the class holds instance
// indices.
func (c *Class) HasReferences() bool {
	for _, f := range c.Fields {
		if f.Type.IsReference() {
			return true
		}
	}
	return false
}

// withFields returns a copy of the class with its field list replaced.
func (c *Class) withFields(fields []Field) *Class {
	nc := *c
	nc.Fields = make([]Field, len(fields))
	copy(nc.Fields, fields)
	return &nc
}
