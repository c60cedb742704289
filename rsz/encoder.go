package rsz

import (
	"bytes"
	"fmt"

	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/schema"
)

// Encoder encodes tables as RSZ blocks.
type Encoder struct {
	// Profile supplies the userdata layout. The version written is the
	// version of the table.
	Profile schema.Profile
}

// Encode encodes t as a block. Every count and offset is derived from t.
func (e Encoder) Encode(t *Table) ([]byte, error) {
	if err := e.validate(t); err != nil {
		var ierr InstanceError
		class := ""
		if errors.As(err, &ierr) {
			class = ierr.Class
		}
		return nil, errors.Schema("encode rsz", class, err)
	}
	return e.encode(t)
}

// validate checks that the values of every instance match its class and
// that every reference is in range.
func (e Encoder) validate(t *Table) error {
	if len(t.Instances) == 0 || !t.Instances[0].IsNull() {
		return InstanceError{Index: 0, Cause: ErrNullInstance}
	}
	for i, ref := range t.Objects {
		if ref < 0 || int(ref) >= len(t.Instances) {
			return CodecError{Cause: fmt.Errorf("object #%d: %w", i, ErrRefRange)}
		}
	}
	for i, inst := range t.Instances[1:] {
		i++
		if inst.IsNull() {
			return InstanceError{Index: i, Cause: fmt.Errorf("instance has no class")}
		}
		if inst.UserData != nil {
			if e.Profile.EmbeddedUserdata && inst.UserData.Table == nil {
				return InstanceError{Index: i, Class: inst.Class.Name, Cause: fmt.Errorf("embedded userdata has no content")}
			}
			if !e.Profile.EmbeddedUserdata && inst.UserData.Path == "" {
				return InstanceError{Index: i, Class: inst.Class.Name, Cause: fmt.Errorf("userdata has no path")}
			}
			continue
		}
		if len(inst.Values) != len(inst.Class.Fields) {
			return InstanceError{Index: i, Class: inst.Class.Name, Cause: fmt.Errorf("%d values for %d fields", len(inst.Values), len(inst.Class.Fields))}
		}
		var rerr error
		inst.ForEachRef(func(field, elem int, ref Ref) {
			if rerr == nil && (ref < 0 || int(ref) >= len(t.Instances)) {
				rerr = ErrValue{Field: inst.Class.Fields[field].Name, Cause: fmt.Errorf("%w: %d", ErrRefRange, ref)}
			}
		})
		if rerr != nil {
			return InstanceError{Index: i, Class: inst.Class.Name, Cause: rerr}
		}
	}
	return nil
}

func (e Encoder) encode(t *Table) ([]byte, error) {
	udRefs := t.UserDataRefs()

	instanceOffset := alignTo(headerSize+4*int64(len(t.Objects)), sectionAlign)
	userdataOffset := alignTo(instanceOffset+instanceInfoSize*int64(len(t.Instances)), sectionAlign)

	userdata, err := e.encodeUserData(t, udRefs, userdataOffset)
	if err != nil {
		return nil, err
	}
	dataOffset := alignTo(userdataOffset+int64(len(userdata)), sectionAlign)

	var buf bytes.Buffer
	w := newWriter(&buf, 0)
	fw := w.fw
	fw.Number(magic32)
	fw.Number(t.Version)
	fw.Number(int32(len(t.Objects)))
	fw.Number(int32(len(t.Instances)))
	fw.Number(int32(len(udRefs)))
	fw.Number(int32(0))
	fw.Number(uint64(instanceOffset))
	fw.Number(uint64(dataOffset))
	fw.Number(uint64(userdataOffset))

	for _, ref := range t.Objects {
		fw.Number(int32(ref))
	}
	w.align(sectionAlign)

	for _, inst := range t.Instances {
		if inst.IsNull() {
			fw.Number(uint32(0))
			fw.Number(uint32(0))
			continue
		}
		fw.Number(inst.Class.TypeID)
		fw.Number(inst.Class.CRC)
	}
	w.align(sectionAlign)

	fw.Bytes(userdata)
	w.align(sectionAlign)
	if err := fw.Err(); err != nil {
		return nil, DataError{Offset: w.pos(), Cause: err}
	}

	for i, inst := range t.Instances {
		if inst.IsNull() || inst.UserData != nil {
			continue
		}
		for j, f := range inst.Class.Fields {
			if err := w.value(f, inst.Values[j]); err != nil {
				return nil, errors.Schema("encode rsz", inst.Class.Name, InstanceError{
					Index: i,
					Class: inst.Class.Name,
					Cause: ErrValue{Field: f.Name, Cause: err},
				})
			}
		}
	}
	if _, err := fw.End(); err != nil {
		return nil, DataError{Offset: w.pos(), Cause: err}
	}
	return buf.Bytes(), nil
}

// encodeUserData returns the userdata section, which begins at offset within
// the block.
func (e Encoder) encodeUserData(t *Table, refs []Ref, offset int64) ([]byte, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	w := newWriter(&buf, offset)
	fw := w.fw

	if !e.Profile.EmbeddedUserdata {
		strings := offset + userdataInfoSize*int64(len(refs))
		var table []byte
		for _, ref := range refs {
			inst := t.Instances[ref]
			b, err := encodeUTF16(inst.UserData.Path)
			if err != nil {
				return nil, InstanceError{Index: int(ref), Class: inst.Class.Name, Cause: err}
			}
			fw.Number(int32(ref))
			fw.Number(inst.Class.TypeID)
			fw.Number(uint64(strings + int64(len(table))))
			table = append(table, b...)
		}
		fw.Bytes(table)
		if _, err := fw.End(); err != nil {
			return nil, DataError{Offset: w.pos(), Cause: err}
		}
		return buf.Bytes(), nil
	}

	blocks := make([][]byte, len(refs))
	for i, ref := range refs {
		inst := t.Instances[ref]
		b, err := e.Encode(inst.UserData.Table)
		if err != nil {
			return nil, InstanceError{Index: int(ref), Class: inst.Class.Name, Cause: err}
		}
		blocks[i] = b
	}
	next := alignTo(offset+embeddedInfoSize*int64(len(refs)), sectionAlign)
	for i, ref := range refs {
		inst := t.Instances[ref]
		fw.Number(int32(ref))
		fw.Number(inst.Class.TypeID)
		fw.Number(inst.UserData.Hash)
		fw.Number(uint32(len(blocks[i])))
		fw.Number(uint64(next))
		next = alignTo(next+int64(len(blocks[i])), sectionAlign)
	}
	for _, b := range blocks {
		w.align(sectionAlign)
		fw.Bytes(b)
	}
	if _, err := fw.End(); err != nil {
		return nil, DataError{Offset: w.pos(), Cause: err}
	}
	return buf.Bytes(), nil
}
