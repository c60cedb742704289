// The container package implements the scene, prefab and userdata file
// formats. Each wraps one RSZ block with format-specific info tables.
//
// Info tables address nodes by their position in the object table of the
// block, not by instance index.
package container

import (
	"github.com/google/uuid"
	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/rsz"
	"github.com/rszkit/rszfile/schema"
)

// Signatures of each kind of file.
const (
	SceneMagic    = "SCN\x00"
	PrefabMagic   = "PFB\x00"
	UserDataMagic = "USR\x00"
)

var magics = [...]uint32{
	rszfile.KindScene:    0x004E4353,
	rszfile.KindPrefab:   0x00424650,
	rszfile.KindUserData: 0x00525355,
}

const (
	sceneHeaderSize    = 64
	prefabHeaderSize   = 56
	userDataHeaderSize = 40

	sceneInfoSize     = 16
	sceneInfoGUIDSize = 32
	prefabInfoSize    = 12
	folderInfoSize    = 8
	refInfoSize       = 16
	pathInfoSize      = 8
	userDataInfoSize  = 16

	tableAlign = 16
)

// NoPrefab is the prefab index of a game object that is not a prefab
// instance.
const NoPrefab = -1

// GameObjectInfo locates a game object and its components within the object
// table.
type GameObjectInfo struct {
	// GUID is the id of the game object. It is only stored by games whose
	// profile has GameObjectGUID.
	GUID uuid.UUID
	// ObjectID is the object table index of the game object. Its components
	// follow it directly.
	ObjectID int32
	// ParentID is the object id of the parent folder or game object.
	ParentID int32
	// ComponentCount is the number of object table entries following
	// ObjectID that are components of the game object.
	ComponentCount int32
	// PrefabID indexes the prefab table of a scene, or is NoPrefab.
	PrefabID int32
}

// FolderInfo locates a folder within the object table.
type FolderInfo struct {
	ObjectID int32
	ParentID int32
}

// GameObjectRefInfo records that a GameObjectRef field of an object refers
// to another object of the same prefab.
type GameObjectRefInfo struct {
	// ObjectID is the object id of the component holding the field.
	ObjectID int32
	// PropertyID identifies the field. It is sourced from the schema.
	PropertyID int32
	// ArrayIndex is the element of an array field, or 0.
	ArrayIndex int32
	// TargetID is the object id of the referenced game object.
	TargetID int32
}

// UserDataInfo lists an external userdata file referenced by the block.
type UserDataInfo struct {
	TypeID uint32
	CRC    uint32
	Path   string
}

// Container is a decoded file.
type Container struct {
	Kind rszfile.Kind
	// Version is the file version, which is also the numeric extension
	// suffix of the file.
	Version int

	GameObjects    []GameObjectInfo
	Folders        []FolderInfo
	Resources      []string
	Prefabs        []string
	UserData       []UserDataInfo
	GameObjectRefs []GameObjectRefInfo

	// Table is the RSZ block.
	Table *rsz.Table
}

// ProfileVersion returns the file version of kind expected for a game.
func ProfileVersion(p schema.Profile, kind rszfile.Kind) int {
	switch kind {
	case rszfile.KindScene:
		return p.SceneVersion
	case rszfile.KindPrefab:
		return p.PrefabVersion
	case rszfile.KindUserData:
		return p.UserVersion
	}
	return 0
}
