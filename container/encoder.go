package container

import (
	"bytes"
	"fmt"
	"math"

	"github.com/anaminus/parse"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
)

// Encoder encodes container files.
type Encoder struct {
	// Profile supplies the layout of the game.
	Profile schema.Profile
}

// Encode encodes c. Every count and offset of the file is derived from the
// tables of c.
func (e Encoder) Encode(c *Container) ([]byte, error) {
	b, err := e.encode(c)
	if err != nil {
		if errors.KindOf(err) != errors.KindUnknown {
			return nil, err
		}
		return nil, errors.Schema("encode "+c.Kind.String(), "", err)
	}
	return b, nil
}

func alignTo(n int64, a int64) int64 {
	if r := n % a; r != 0 {
		return n + a - r
	}
	return n
}

// stringTable accumulates the UTF-16LE strings of a file.
type stringTable struct {
	base int64
	data []byte
}

// add appends s and returns its offset within the file.
func (t *stringTable) add(s string) (uint64, error) {
	b, err := utf16.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return 0, err
	}
	off := t.base + int64(len(t.data))
	t.data = append(t.data, b...)
	t.data = append(t.data, 0, 0)
	return uint64(off), nil
}

// layout holds the offsets of the tables of a file.
type layout struct {
	infos     int64
	folders   int64
	refs      int64
	resources int64
	prefabs   int64
	userdata  int64
	strings   int64
	data      int64
}

func (e Encoder) encode(c *Container) ([]byte, error) {
	if int(c.Kind) >= len(magics) {
		return nil, ErrUnknownKind
	}
	if c.Table == nil {
		return nil, fmt.Errorf("container has no rsz block")
	}
	if err := e.check(c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	block, err := rsz.Encoder{Profile: e.Profile}.Encode(c.Table)
	if err != nil {
		return nil, err
	}

	// Offsets of each table. Tables absent from the kind are empty.
	var l layout
	switch c.Kind {
	case rszfile.KindScene:
		infoSize := int64(sceneInfoSize)
		if e.Profile.GameObjectGUID {
			infoSize = sceneInfoGUIDSize
		}
		l.infos = sceneHeaderSize
		l.folders = alignTo(l.infos+infoSize*int64(len(c.GameObjects)), tableAlign)
		l.resources = alignTo(l.folders+folderInfoSize*int64(len(c.Folders)), tableAlign)
		l.prefabs = alignTo(l.resources+pathInfoSize*int64(len(c.Resources)), tableAlign)
		l.userdata = alignTo(l.prefabs+pathInfoSize*int64(len(c.Prefabs)), tableAlign)
	case rszfile.KindPrefab:
		l.infos = prefabHeaderSize
		l.refs = alignTo(l.infos+prefabInfoSize*int64(len(c.GameObjects)), tableAlign)
		l.resources = alignTo(l.refs+refInfoSize*int64(len(c.GameObjectRefs)), tableAlign)
		l.userdata = alignTo(l.resources+pathInfoSize*int64(len(c.Resources)), tableAlign)
	case rszfile.KindUserData:
		l.resources = alignTo(userDataHeaderSize, tableAlign)
		l.userdata = alignTo(l.resources+pathInfoSize*int64(len(c.Resources)), tableAlign)
	}
	l.strings = l.userdata + userDataInfoSize*int64(len(c.UserData))

	strs := &stringTable{base: l.strings}
	resources := make([]uint64, len(c.Resources))
	for i, s := range c.Resources {
		if resources[i], err = strs.add(s); err != nil {
			return nil, TableError{Table: "resource", Index: i, Cause: err}
		}
	}
	prefabs := make([]uint64, len(c.Prefabs))
	for i, s := range c.Prefabs {
		if prefabs[i], err = strs.add(s); err != nil {
			return nil, TableError{Table: "prefab", Index: i, Cause: err}
		}
	}
	userdata := make([]uint64, len(c.UserData))
	for i, info := range c.UserData {
		if userdata[i], err = strs.add(info.Path); err != nil {
			return nil, TableError{Table: "userdata", Index: i, Cause: err}
		}
	}
	l.data = alignTo(l.strings+int64(len(strs.data)), tableAlign)

	var buf bytes.Buffer
	fw := parse.NewBinaryWriter(&buf)
	pad := func(to int64) {
		if n := to - int64(buf.Len()); n > 0 {
			fw.Bytes(make([]byte, n))
		}
	}

	fw.Number(magics[c.Kind])
	switch c.Kind {
	case rszfile.KindScene:
		fw.Number(int32(len(c.GameObjects)))
		fw.Number(int32(len(c.Resources)))
		fw.Number(int32(len(c.Folders)))
		fw.Number(int32(len(c.Prefabs)))
		fw.Number(int32(len(c.UserData)))
		fw.Number(uint64(l.folders))
		fw.Number(uint64(l.resources))
		fw.Number(uint64(l.prefabs))
		fw.Number(uint64(l.userdata))
		fw.Number(uint64(l.data))
		for _, info := range c.GameObjects {
			if e.Profile.GameObjectGUID {
				fw.Bytes(info.GUID[:])
			}
			fw.Number(info.ObjectID)
			fw.Number(info.ParentID)
			fw.Number(uint16(info.ComponentCount))
			fw.Number(uint16(0))
			fw.Number(info.PrefabID)
		}
		pad(l.folders)
		for _, info := range c.Folders {
			fw.Number(info.ObjectID)
			fw.Number(info.ParentID)
		}
		pad(l.resources)
		for _, off := range resources {
			fw.Number(off)
		}
		pad(l.prefabs)
		for _, off := range prefabs {
			fw.Number(off)
		}

	case rszfile.KindPrefab:
		fw.Number(int32(len(c.GameObjects)))
		fw.Number(int32(len(c.Resources)))
		fw.Number(int32(len(c.GameObjectRefs)))
		fw.Number(int16(len(c.UserData)))
		fw.Number(int16(0))
		fw.Number(uint32(0))
		fw.Number(uint64(l.refs))
		fw.Number(uint64(l.resources))
		fw.Number(uint64(l.userdata))
		fw.Number(uint64(l.data))
		for _, info := range c.GameObjects {
			fw.Number(info.ObjectID)
			fw.Number(info.ParentID)
			fw.Number(info.ComponentCount)
		}
		pad(l.refs)
		for _, info := range c.GameObjectRefs {
			fw.Number(info.ObjectID)
			fw.Number(info.PropertyID)
			fw.Number(info.ArrayIndex)
			fw.Number(info.TargetID)
		}
		pad(l.resources)
		for _, off := range resources {
			fw.Number(off)
		}

	case rszfile.KindUserData:
		fw.Number(int32(len(c.Resources)))
		fw.Number(int32(len(c.UserData)))
		fw.Number(int32(len(c.Table.Objects)))
		fw.Number(uint64(l.resources))
		fw.Number(uint64(l.userdata))
		fw.Number(uint64(l.data))
		pad(l.resources)
		for _, off := range resources {
			fw.Number(off)
		}
	}

	pad(l.userdata)
	for i, info := range c.UserData {
		fw.Number(info.TypeID)
		fw.Number(info.CRC)
		fw.Number(userdata[i])
	}
	fw.Bytes(strs.data)
	pad(l.data)
	fw.Bytes(block)
	if _, err := fw.End(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// check verifies that c only holds the tables of its kind, and that counts
// fit their fields.
func (e Encoder) check(c *Container) error {
	unsupported := func(table string) error {
		return fmt.Errorf("%s file cannot hold %s infos", c.Kind, table)
	}
	switch c.Kind {
	case rszfile.KindScene:
		if len(c.GameObjectRefs) > 0 {
			return unsupported("game object ref")
		}
		for i, info := range c.GameObjects {
			if info.ComponentCount > math.MaxUint16 {
				return TableError{Table: "game object", Index: i, Cause: fmt.Errorf("%d components exceed limit", info.ComponentCount)}
			}
		}
	case rszfile.KindPrefab:
		if len(c.Folders) > 0 {
			return unsupported("folder")
		}
		if len(c.Prefabs) > 0 {
			return unsupported("prefab")
		}
		if len(c.UserData) > math.MaxInt16 {
			return fmt.Errorf("%d userdata infos exceed limit", len(c.UserData))
		}
	case rszfile.KindUserData:
		if len(c.GameObjects) > 0 {
			return unsupported("game object")
		}
		if len(c.Folders) > 0 {
			return unsupported("folder")
		}
		if len(c.Prefabs) > 0 {
			return unsupported("prefab")
		}
		if len(c.GameObjectRefs) > 0 {
			return unsupported("game object ref")
		}
	}
	return nil
}
