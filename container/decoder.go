package container

import (
	"bytes"
	"fmt"

	"github.com/anaminus/parse"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/errors"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
	"golang.org/x/text/encoding/unicode"
)

// Decoder decodes container files.
type Decoder struct {
	// Schema supplies the classes of the RSZ block.
	Schema *schema.Database
	// Profile supplies the expected versions and layout of the game.
	Profile schema.Profile
}

// Decode decodes a file of the given kind from b. If version is 0, the
// version of the profile is assumed; otherwise it must match the profile.
// Any failure aborts the whole file and is classified as a schema mismatch.
func (d Decoder) Decode(kind rszfile.Kind, version int, b []byte) (*Container, error) {
	c, err := d.decode(kind, version, b)
	if err != nil {
		if errors.KindOf(err) != errors.KindUnknown {
			return nil, err
		}
		return nil, errors.Schema("decode "+kind.String(), "", err)
	}
	return c, nil
}

func (d Decoder) decode(kind rszfile.Kind, version int, b []byte) (c *Container, err error) {
	if int(kind) >= len(magics) {
		return nil, ErrUnknownKind
	}
	want := ProfileVersion(d.Profile, kind)
	if version == 0 {
		version = want
	}
	if version != want {
		return nil, ErrVersion{Kind: kind.String(), Got: version, Want: want}
	}
	if len(b) < 4 || leUint32(b) != magics[kind] {
		return nil, rsz.DataError{Offset: 0, Cause: ErrInvalidSig}
	}

	c = &Container{Kind: kind, Version: version}
	var dataOffset uint64
	switch kind {
	case rszfile.KindScene:
		dataOffset, err = d.decodeScene(b, c)
	case rszfile.KindPrefab:
		dataOffset, err = d.decodePrefab(b, c)
	case rszfile.KindUserData:
		dataOffset, err = d.decodeUserDataFile(b, c)
	}
	if err != nil {
		return nil, err
	}

	rd := rsz.Decoder{Schema: d.Schema, Profile: d.Profile}
	if c.Table, err = rd.Decode(b[dataOffset:]); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// section returns a reader of the count entries of size bytes at offset.
func section(b []byte, offset uint64, count int64, size int64) (*parse.BinaryReader, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count", ErrCorruptHeader)
	}
	end := offset + uint64(count*size)
	if offset > uint64(len(b)) || end > uint64(len(b)) || end < offset {
		return nil, fmt.Errorf("%w: table at %d exceeds file", ErrCorruptHeader, offset)
	}
	return parse.NewBinaryReader(bytes.NewReader(b[offset:end])), nil
}

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// readString reads a null-terminated UTF-16LE string at offset.
func readString(b []byte, offset uint64) (string, error) {
	if offset >= uint64(len(b)) {
		return "", fmt.Errorf("%w: string at %d exceeds file", ErrCorruptHeader, offset)
	}
	s := b[offset:]
	for i := 0; i+1 < len(s); i += 2 {
		if s[i] == 0 && s[i+1] == 0 {
			s = s[:i]
			break
		}
	}
	r, err := utf16.NewDecoder().Bytes(s)
	return string(r), err
}

// readPaths reads a table of string offsets.
func readPaths(b []byte, name string, offset uint64, count int64) ([]string, error) {
	if count == 0 {
		return nil, nil
	}
	fr, err := section(b, offset, count, pathInfoSize)
	if err != nil {
		return nil, TableError{Table: name, Index: 0, Cause: err}
	}
	paths := make([]string, count)
	for i := range paths {
		var off uint64
		fr.Number(&off)
		if err := fr.Err(); err != nil {
			return nil, TableError{Table: name, Index: i, Cause: err}
		}
		if paths[i], err = readString(b, off); err != nil {
			return nil, TableError{Table: name, Index: i, Cause: err}
		}
	}
	return paths, nil
}

// readUserData reads a table of userdata infos.
func readUserData(b []byte, offset uint64, count int64) ([]UserDataInfo, error) {
	if count == 0 {
		return nil, nil
	}
	fr, err := section(b, offset, count, userDataInfoSize)
	if err != nil {
		return nil, TableError{Table: "userdata", Index: 0, Cause: err}
	}
	infos := make([]UserDataInfo, count)
	for i := range infos {
		var off uint64
		fr.Number(&infos[i].TypeID)
		fr.Number(&infos[i].CRC)
		fr.Number(&off)
		if err := fr.Err(); err != nil {
			return nil, TableError{Table: "userdata", Index: i, Cause: err}
		}
		if infos[i].Path, err = readString(b, off); err != nil {
			return nil, TableError{Table: "userdata", Index: i, Cause: err}
		}
	}
	return infos, nil
}

func checkData(b []byte, offset uint64) error {
	if offset > uint64(len(b)) {
		return fmt.Errorf("%w: data offset %d exceeds file", ErrCorruptHeader, offset)
	}
	return nil
}

func (d Decoder) decodeScene(b []byte, c *Container) (dataOffset uint64, err error) {
	fr, err := section(b, 0, 1, sceneHeaderSize)
	if err != nil {
		return 0, err
	}
	var magic uint32
	var infoCount, resourceCount, folderCount, prefabCount, userdataCount int32
	var folderOffset, resourceOffset, prefabOffset, userdataOffset uint64
	fr.Number(&magic)
	fr.Number(&infoCount)
	fr.Number(&resourceCount)
	fr.Number(&folderCount)
	fr.Number(&prefabCount)
	fr.Number(&userdataCount)
	fr.Number(&folderOffset)
	fr.Number(&resourceOffset)
	fr.Number(&prefabOffset)
	fr.Number(&userdataOffset)
	fr.Number(&dataOffset)
	if _, err := fr.End(); err != nil {
		return 0, err
	}

	infoSize := int64(sceneInfoSize)
	if d.Profile.GameObjectGUID {
		infoSize = sceneInfoGUIDSize
	}
	if infoCount > 0 {
		if fr, err = section(b, sceneHeaderSize, int64(infoCount), infoSize); err != nil {
			return 0, TableError{Table: "game object", Cause: err}
		}
		c.GameObjects = make([]GameObjectInfo, infoCount)
		for i := range c.GameObjects {
			info := &c.GameObjects[i]
			if d.Profile.GameObjectGUID {
				fr.Bytes(info.GUID[:])
			}
			var count, reserved uint16
			fr.Number(&info.ObjectID)
			fr.Number(&info.ParentID)
			fr.Number(&count)
			fr.Number(&reserved)
			fr.Number(&info.PrefabID)
			info.ComponentCount = int32(count)
		}
		if err := fr.Err(); err != nil {
			return 0, TableError{Table: "game object", Cause: err}
		}
	} else if infoCount < 0 {
		return 0, fmt.Errorf("%w: negative count", ErrCorruptHeader)
	}

	if folderCount > 0 {
		if fr, err = section(b, folderOffset, int64(folderCount), folderInfoSize); err != nil {
			return 0, TableError{Table: "folder", Cause: err}
		}
		c.Folders = make([]FolderInfo, folderCount)
		for i := range c.Folders {
			fr.Number(&c.Folders[i].ObjectID)
			fr.Number(&c.Folders[i].ParentID)
		}
		if err := fr.Err(); err != nil {
			return 0, TableError{Table: "folder", Cause: err}
		}
	}

	if c.Resources, err = readPaths(b, "resource", resourceOffset, int64(resourceCount)); err != nil {
		return 0, err
	}
	if c.Prefabs, err = readPaths(b, "prefab", prefabOffset, int64(prefabCount)); err != nil {
		return 0, err
	}
	if c.UserData, err = readUserData(b, userdataOffset, int64(userdataCount)); err != nil {
		return 0, err
	}
	return dataOffset, checkData(b, dataOffset)
}

func (d Decoder) decodePrefab(b []byte, c *Container) (dataOffset uint64, err error) {
	fr, err := section(b, 0, 1, prefabHeaderSize)
	if err != nil {
		return 0, err
	}
	var magic, reserved uint32
	var infoCount, resourceCount, refCount int32
	var userdataCount, reserved16 int16
	var refOffset, resourceOffset, userdataOffset uint64
	fr.Number(&magic)
	fr.Number(&infoCount)
	fr.Number(&resourceCount)
	fr.Number(&refCount)
	fr.Number(&userdataCount)
	fr.Number(&reserved16)
	fr.Number(&reserved)
	fr.Number(&refOffset)
	fr.Number(&resourceOffset)
	fr.Number(&userdataOffset)
	fr.Number(&dataOffset)
	if _, err := fr.End(); err != nil {
		return 0, err
	}

	if infoCount != 0 {
		if fr, err = section(b, prefabHeaderSize, int64(infoCount), prefabInfoSize); err != nil {
			return 0, TableError{Table: "game object", Cause: err}
		}
		c.GameObjects = make([]GameObjectInfo, infoCount)
		for i := range c.GameObjects {
			info := &c.GameObjects[i]
			fr.Number(&info.ObjectID)
			fr.Number(&info.ParentID)
			fr.Number(&info.ComponentCount)
			info.PrefabID = NoPrefab
		}
		if err := fr.Err(); err != nil {
			return 0, TableError{Table: "game object", Cause: err}
		}
	}

	if refCount != 0 {
		if fr, err = section(b, refOffset, int64(refCount), refInfoSize); err != nil {
			return 0, TableError{Table: "game object ref", Cause: err}
		}
		c.GameObjectRefs = make([]GameObjectRefInfo, refCount)
		for i := range c.GameObjectRefs {
			info := &c.GameObjectRefs[i]
			fr.Number(&info.ObjectID)
			fr.Number(&info.PropertyID)
			fr.Number(&info.ArrayIndex)
			fr.Number(&info.TargetID)
		}
		if err := fr.Err(); err != nil {
			return 0, TableError{Table: "game object ref", Cause: err}
		}
	}

	if c.Resources, err = readPaths(b, "resource", resourceOffset, int64(resourceCount)); err != nil {
		return 0, err
	}
	if c.UserData, err = readUserData(b, userdataOffset, int64(userdataCount)); err != nil {
		return 0, err
	}
	return dataOffset, checkData(b, dataOffset)
}

func (d Decoder) decodeUserDataFile(b []byte, c *Container) (dataOffset uint64, err error) {
	fr, err := section(b, 0, 1, userDataHeaderSize)
	if err != nil {
		return 0, err
	}
	var magic uint32
	var resourceCount, userdataCount, infoCount int32
	var resourceOffset, userdataOffset uint64
	fr.Number(&magic)
	fr.Number(&resourceCount)
	fr.Number(&userdataCount)
	fr.Number(&infoCount)
	fr.Number(&resourceOffset)
	fr.Number(&userdataOffset)
	fr.Number(&dataOffset)
	if _, err := fr.End(); err != nil {
		return 0, err
	}
	if c.Resources, err = readPaths(b, "resource", resourceOffset, int64(resourceCount)); err != nil {
		return 0, err
	}
	if c.UserData, err = readUserData(b, userdataOffset, int64(userdataCount)); err != nil {
		return 0, err
	}
	return dataOffset, checkData(b, dataOffset)
}

// validate checks that every object id of the info tables is within the
// object table.
func (c *Container) validate() error {
	n := int32(len(c.Table.Objects))
	object := func(id int32) bool { return id >= 0 && id < n }
	parent := func(id int32) bool { return id >= -1 && id < n }
	for i, info := range c.GameObjects {
		if !object(info.ObjectID) || !parent(info.ParentID) || info.ComponentCount < 0 || int64(info.ObjectID)+int64(info.ComponentCount) >= int64(n) {
			return TableError{Table: "game object", Index: i, Cause: ErrObjectRange}
		}
		if c.Kind == rszfile.KindScene && info.PrefabID != NoPrefab && (info.PrefabID < 0 || int(info.PrefabID) >= len(c.Prefabs)) {
			return TableError{Table: "game object", Index: i, Cause: fmt.Errorf("prefab index %d out of range", info.PrefabID)}
		}
	}
	for i, info := range c.Folders {
		if !object(info.ObjectID) || !parent(info.ParentID) {
			return TableError{Table: "folder", Index: i, Cause: ErrObjectRange}
		}
	}
	for i, info := range c.GameObjectRefs {
		if !object(info.ObjectID) || !object(info.TargetID) {
			return TableError{Table: "game object ref", Index: i, Cause: ErrObjectRange}
		}
	}
	return nil
}

// Instance returns the instance at the given object id, or nil.
func (c *Container) Instance(objectID int32) *rsz.Instance {
	if objectID < 0 || int(objectID) >= len(c.Table.Objects) {
		return nil
	}
	return c.Table.Instance(c.Table.Objects[objectID])
}

// NullSlot returns whether the first entry of the object table is the null
// instance.
func (c *Container) NullSlot() bool {
	return len(c.Table.Objects) > 0 && c.Table.Objects[0] == 0
}
