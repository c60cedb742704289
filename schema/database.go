package schema

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/rszkit/rszfile/errors"
)

// Database is the schema of one game. A Database is never modified after it
// has been published by a Cache; patches produce a new Database.
type Database struct {
	Game Game

	byName map[string]*Class
	byID   map[uint32]*Class

	// Enums maps an enum name to its items.
	Enums map[string]map[string]int64

	// RefProperties maps a class name to the property id of each of its
	// GameObjectRef fields.
	RefProperties map[string]map[string]int32

	// Patch holds the field layouts applied over the dump.
	Patch Patch

	fingerprint uint64
}

// NewDatabase returns a database containing the given classes.
func NewDatabase(game Game, classes ...*Class) *Database {
	db := &Database{
		Game:          game,
		byName:        make(map[string]*Class, len(classes)),
		byID:          make(map[uint32]*Class, len(classes)),
		Enums:         map[string]map[string]int64{},
		RefProperties: map[string]map[string]int32{},
	}
	for _, c := range classes {
		db.add(c)
	}
	db.fingerprint = db.computeFingerprint()
	return db
}

func (db *Database) add(c *Class) {
	db.byName[c.Name] = c
	db.byID[c.TypeID] = c
}

// Class returns the class of the given name, or nil.
func (db *Database) Class(name string) *Class {
	if db == nil {
		return nil
	}
	return db.byName[name]
}

// ClassByID returns the class with the given type id, or nil.
func (db *Database) ClassByID(id uint32) *Class {
	if db == nil {
		return nil
	}
	return db.byID[id]
}

// Len returns the number of classes.
func (db *Database) Len() int {
	return len(db.byName)
}

// Classes returns the classes sorted by name.
func (db *Database) Classes() []*Class {
	classes := make([]*Class, 0, len(db.byName))
	for _, c := range db.byName {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes
}

// SetRefProperty records the property id of a GameObjectRef field.
func (db *Database) SetRefProperty(class, field string, id int32) {
	m := db.RefProperties[class]
	if m == nil {
		m = map[string]int32{}
		db.RefProperties[class] = m
	}
	m[field] = id
}

// RefPropertyName returns the field of class whose property id is id.
func (db *Database) RefPropertyName(class string, id int32) (string, bool) {
	for name, pid := range db.RefProperties[class] {
		if pid == id {
			return name, true
		}
	}
	return "", false
}

// Fingerprint identifies the class layouts of the database. Import caches
// produced under a different fingerprint are stale.
func (db *Database) Fingerprint() uint64 {
	return db.fingerprint
}

func (db *Database) computeFingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, c := range db.Classes() {
		io.WriteString(h, c.Name)
		binary.LittleEndian.PutUint32(buf[:4], c.CRC)
		binary.LittleEndian.PutUint32(buf[4:], uint32(len(c.Fields)))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// clone returns a shallow copy of the database that can be patched without
// affecting db.
func (db *Database) clone() *Database {
	nd := &Database{
		Game:          db.Game,
		byName:        make(map[string]*Class, len(db.byName)),
		byID:          make(map[uint32]*Class, len(db.byID)),
		Enums:         db.Enums,
		RefProperties: db.RefProperties,
		Patch:         db.Patch.clone(),
	}
	for k, v := range db.byName {
		nd.byName[k] = v
	}
	for k, v := range db.byID {
		nd.byID[k] = v
	}
	return nd
}

////////////////////////////////////////////////////////////////

type jsonClass struct {
	Name   string  `json:"name"`
	CRC    string  `json:"crc"`
	Fields []Field `json:"fields"`
}

func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

// DecodeClasses reads classes from an RSZ JSON dump, which maps hexadecimal
// type ids to classes.
func DecodeClasses(r io.Reader) ([]*Class, error) {
	var dump map[string]jsonClass
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, errors.Wrap(err, "decode class dump")
	}
	classes := make([]*Class, 0, len(dump))
	for key, jc := range dump {
		id, err := parseHex(key)
		if err != nil {
			return nil, errors.Wrapf(err, "type id %q", key)
		}
		if id == 0 || jc.Name == "" {
			continue
		}
		crc, err := parseHex(jc.CRC)
		if err != nil {
			return nil, errors.Wrapf(err, "crc of %s", jc.Name)
		}
		classes = append(classes, &Class{Name: jc.Name, TypeID: id, CRC: crc, Fields: jc.Fields})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].TypeID < classes[j].TypeID })
	return classes, nil
}

// DecodeEnums reads an enum dump mapping enum names to item values.
func DecodeEnums(r io.Reader) (map[string]map[string]int64, error) {
	var enums map[string]map[string]int64
	if err := json.NewDecoder(r).Decode(&enums); err != nil {
		return nil, errors.Wrap(err, "decode enums")
	}
	return enums, nil
}

// DecodeRefProperties reads a dump mapping class names to the property ids
// of their GameObjectRef fields.
func DecodeRefProperties(r io.Reader) (map[string]map[string]int32, error) {
	var props map[string]map[string]int32
	if err := json.NewDecoder(r).Decode(&props); err != nil {
		return nil, errors.Wrap(err, "decode gameobjectref properties")
	}
	return props, nil
}

// Files locates the schema files of one game. Only Classes is required.
type Files struct {
	Classes       string `yaml:"classes"`
	Enums         string `yaml:"enums"`
	RefProperties string `yaml:"gameobjectref_properties"`
	Patch         string `yaml:"patch"`
}

func decodeFile[T any](path string, decode func(io.Reader) (T, error)) (v T, err error) {
	f, err := os.Open(path)
	if err != nil {
		return v, err
	}
	defer f.Close()
	return decode(f)
}

// LoadDatabase loads the schema of a game from files.
func LoadDatabase(game Game, files Files) (*Database, error) {
	if files.Classes == "" {
		return nil, errors.Errorf("no class dump for %s", game)
	}
	classes, err := decodeFile(files.Classes, DecodeClasses)
	if err != nil {
		return nil, err
	}
	db := NewDatabase(game, classes...)
	if files.Enums != "" {
		if db.Enums, err = decodeFile(files.Enums, DecodeEnums); err != nil {
			return nil, err
		}
	}
	if files.RefProperties != "" {
		if db.RefProperties, err = decodeFile(files.RefProperties, DecodeRefProperties); err != nil {
			return nil, err
		}
	}
	if files.Patch != "" {
		patch, err := decodeFile(files.Patch, DecodePatch)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			db = db.Apply(patch)
		}
	}
	return db, nil
}
