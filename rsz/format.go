// The rsz package implements the RSZ block: a flat, index-addressed list of
// typed instances and an object table of root-reachable instances. RSZ
// blocks are the payload of scene, prefab and userdata files.
//
// A block is decoded into a Table, in which Object and UserData fields hold
// raw instance indices (Ref). Tables are converted to and from the objects
// of a scene graph with Resolver and Builder.
package rsz

// Magic is the signature of an RSZ block.
const Magic = "RSZ\x00"

// magic32 is Magic read as a little-endian integer.
const magic32 uint32 = 0x005A5352

const (
	// headerSize is the size of the block header.
	headerSize = 0x30
	// instanceInfoSize is the size of the type id and crc of an instance.
	instanceInfoSize = 8
	// userdataInfoSize is the size of an external userdata record.
	userdataInfoSize = 16
	// embeddedInfoSize is the size of an embedded userdata record.
	embeddedInfoSize = 24
	// sectionAlign is the alignment of the instance info, userdata and data
	// sections, and of embedded blocks.
	sectionAlign = 16
)

// header is the fixed header of an RSZ block. Offsets are relative to the
// start of the block.
type header struct {
	Magic          uint32
	Version        uint32
	ObjectCount    int32
	InstanceCount  int32
	UserdataCount  int32
	Reserved       int32
	InstanceOffset uint64
	DataOffset     uint64
	UserdataOffset uint64
}
