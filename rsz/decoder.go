package rsz

import (
	"bytes"
	"fmt"

	"github.com/anaminus/parse"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/schema"
)

// Decoder decodes RSZ blocks.
type Decoder struct {
	// Schema supplies the classes of instances.
	Schema *schema.Database
	// Profile supplies the expected version and userdata layout.
	Profile schema.Profile
}

// Decode decodes a block from b. Bytes following the block must be zero.
// Any failure aborts the whole block; the returned error is classified as a
// schema mismatch.
func (d Decoder) Decode(b []byte) (*Table, error) {
	t, err := d.decode(b)
	if err != nil {
		var ierr InstanceError
		class := ""
		if errors.As(err, &ierr) {
			class = ierr.Class
		}
		return nil, errors.Schema("decode rsz", class, err)
	}
	return t, nil
}

func (d Decoder) readHeader(b []byte) (h header, err error) {
	if len(b) < headerSize {
		return h, DataError{Offset: 0, Cause: ErrCorruptHeader}
	}
	fr := parse.NewBinaryReader(bytes.NewReader(b[:headerSize]))
	fr.Number(&h.Magic)
	fr.Number(&h.Version)
	fr.Number(&h.ObjectCount)
	fr.Number(&h.InstanceCount)
	fr.Number(&h.UserdataCount)
	fr.Number(&h.Reserved)
	fr.Number(&h.InstanceOffset)
	fr.Number(&h.DataOffset)
	fr.Number(&h.UserdataOffset)
	if _, err := fr.End(); err != nil {
		return h, DataError{Offset: 0, Cause: err}
	}

	if h.Magic != magic32 {
		return h, DataError{Offset: 0, Cause: ErrInvalidSig}
	}
	if h.Version != d.Profile.RSZVersion {
		return h, DataError{Offset: 4, Cause: ErrVersion{Got: h.Version, Want: d.Profile.RSZVersion}}
	}

	size := uint64(len(b))
	switch {
	case h.ObjectCount < 0, h.InstanceCount < 1, h.UserdataCount < 0:
		err = fmt.Errorf("negative count")
	case h.InstanceOffset < headerSize+4*uint64(h.ObjectCount):
		err = fmt.Errorf("instance offset overlaps object table")
	case h.UserdataOffset < h.InstanceOffset+instanceInfoSize*uint64(h.InstanceCount):
		err = fmt.Errorf("userdata offset overlaps instance infos")
	case h.DataOffset < h.UserdataOffset:
		err = fmt.Errorf("data offset precedes userdata")
	case h.DataOffset > size:
		err = fmt.Errorf("data offset beyond end of block")
	}
	if err != nil {
		return h, DataError{Offset: 8, Cause: fmt.Errorf("%w: %s", ErrCorruptHeader, err)}
	}
	return h, nil
}

func (d Decoder) decode(b []byte) (*Table, error) {
	h, err := d.readHeader(b)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Version:   h.Version,
		Instances: make([]*Instance, h.InstanceCount),
		Objects:   make([]Ref, h.ObjectCount),
	}

	// Object table.
	r := newReader(bytes.NewReader(b[headerSize:]), headerSize)
	for i := range t.Objects {
		ref := Ref(r.i32())
		if r.fr.Err() == nil && (ref < 0 || int32(ref) >= h.InstanceCount) {
			return nil, DataError{Offset: r.pos() - 4, Cause: fmt.Errorf("object #%d: %w", i, ErrRefRange)}
		}
		t.Objects[i] = ref
	}
	if err := r.fr.Err(); err != nil {
		return nil, DataError{Offset: r.pos(), Cause: err}
	}

	// Instance infos.
	r = newReader(bytes.NewReader(b[h.InstanceOffset:]), int64(h.InstanceOffset))
	for i := range t.Instances {
		typeID := r.u32()
		crc := r.u32()
		if err := r.fr.Err(); err != nil {
			return nil, DataError{Offset: r.pos(), Cause: err}
		}
		if i == 0 {
			if typeID != 0 {
				return nil, InstanceError{Index: 0, Cause: ErrNullInstance}
			}
			t.Instances[0] = &Instance{}
			continue
		}
		class := d.Schema.ClassByID(typeID)
		if class == nil {
			return nil, InstanceError{Index: i, Cause: ErrUnknownType(typeID)}
		}
		if class.CRC != crc {
			return nil, InstanceError{Index: i, Class: class.Name, Cause: ErrCRC{Class: class.Name, Got: crc, Want: class.CRC}}
		}
		t.Instances[i] = &Instance{Class: class}
	}

	if err := d.decodeUserData(b, h, t); err != nil {
		return nil, err
	}

	// Instance bodies.
	r = newReader(bytes.NewReader(b[h.DataOffset:]), int64(h.DataOffset))
	for i, inst := range t.Instances {
		if inst.IsNull() || inst.UserData != nil {
			continue
		}
		inst.Values = make([]rszfile.Value, len(inst.Class.Fields))
		for j, f := range inst.Class.Fields {
			v, err := r.value(f)
			if err != nil {
				return nil, InstanceError{Index: i, Class: inst.Class.Name, Cause: DataError{
					Offset: r.pos(),
					Cause:  ErrValue{Field: f.Name, Cause: err},
				}}
			}
			inst.Values[j] = v
		}
		var rerr error
		inst.ForEachRef(func(field, elem int, ref Ref) {
			if rerr == nil && (ref < 0 || int(ref) >= len(t.Instances)) {
				rerr = ErrValue{Field: inst.Class.Fields[field].Name, Cause: fmt.Errorf("%w: %d", ErrRefRange, ref)}
			}
		})
		if rerr != nil {
			return nil, InstanceError{Index: i, Class: inst.Class.Name, Cause: rerr}
		}
	}

	end := r.pos()
	for _, c := range b[end:] {
		if c != 0 {
			return nil, DataError{Offset: end, Cause: ErrTrailingData}
		}
	}
	return t, nil
}

func (d Decoder) decodeUserData(b []byte, h header, t *Table) error {
	if h.UserdataCount == 0 {
		return nil
	}
	infoSize := uint64(userdataInfoSize)
	if d.Profile.EmbeddedUserdata {
		infoSize = embeddedInfoSize
	}
	// Nested blocks follow the userdata infos.
	infoEnd := h.UserdataOffset + infoSize*uint64(h.UserdataCount)
	r := newReader(bytes.NewReader(b[h.UserdataOffset:]), int64(h.UserdataOffset))
	for i := int32(0); i < h.UserdataCount; i++ {
		id := r.i32()
		typeID := r.u32()
		ud := &UserData{}
		var pathOffset, rszOffset uint64
		var size uint32
		if d.Profile.EmbeddedUserdata {
			ud.Hash = r.u32()
			size = r.u32()
			r.fr.Number(&rszOffset)
		} else {
			r.fr.Number(&pathOffset)
		}
		if err := r.fr.Err(); err != nil {
			return DataError{Offset: r.pos(), Cause: err}
		}

		if id <= 0 || int(id) >= len(t.Instances) {
			return DataError{Offset: r.pos(), Cause: fmt.Errorf("userdata #%d: %w", i, ErrRefRange)}
		}
		inst := t.Instances[id]
		if inst.UserData != nil {
			return InstanceError{Index: int(id), Class: inst.Class.Name, Cause: ErrDuplicateUserData}
		}
		if inst.Class.TypeID != typeID {
			return InstanceError{Index: int(id), Class: inst.Class.Name, Cause: fmt.Errorf("userdata type 0x%08X does not match instance", typeID)}
		}

		if d.Profile.EmbeddedUserdata {
			n := uint64(len(b))
			if rszOffset < infoEnd || rszOffset > n || uint64(size) > n-rszOffset || uint64(size) >= n {
				return InstanceError{Index: int(id), Class: inst.Class.Name, Cause: fmt.Errorf("%w: nested block at %d", ErrCorruptHeader, rszOffset)}
			}
			nested, err := d.decode(b[rszOffset : rszOffset+uint64(size)])
			if err != nil {
				return InstanceError{Index: int(id), Class: inst.Class.Name, Cause: err}
			}
			ud.Table = nested
		} else {
			if pathOffset >= uint64(len(b)) {
				return InstanceError{Index: int(id), Class: inst.Class.Name, Cause: ErrCorruptHeader}
			}
			path, err := decodeUTF16(b[pathOffset:])
			if err != nil {
				return InstanceError{Index: int(id), Class: inst.Class.Name, Cause: err}
			}
			ud.Path = path
		}
		inst.UserData = ud
	}
	return nil
}
