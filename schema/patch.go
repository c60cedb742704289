package schema

import (
	"encoding/json"
	"io"

	"github.com/rszkit/rszfile/errors"
)

// Patch replaces the field layouts of classes by name. Patches correct
// dumps whose layouts are known to disagree with the files of a game.
type Patch map[string][]Field

func (p Patch) clone() Patch {
	if p == nil {
		return nil
	}
	np := make(Patch, len(p))
	for k, v := range p {
		np[k] = v
	}
	return np
}

// Merge returns a patch containing the entries of p overridden by the
// entries of q.
func (p Patch) Merge(q Patch) Patch {
	np := p.clone()
	if np == nil {
		np = Patch{}
	}
	for k, v := range q {
		np[k] = v
	}
	return np
}

// DecodePatch reads a patch from JSON.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "decode patch")
	}
	return p, nil
}

// Encode writes the patch as indented JSON. Classes are sorted by name.
func (p Patch) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(map[string][]Field(p))
}

// Apply returns a new database with the patch applied. Classes not present in
// db are ignored. db is not modified.
func (db *Database) Apply(p Patch) *Database {
	nd := db.clone()
	nd.Patch = nd.Patch.Merge(p)
	for name, fields := range p {
		c := nd.byName[name]
		if c == nil {
			continue
		}
		nd.add(c.withFields(fields))
	}
	nd.fingerprint = nd.computeFingerprint()
	return nd
}
