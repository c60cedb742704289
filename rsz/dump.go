package rsz

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rszkit/rszfile"
	"github.com/rszkit/rszfile/errors"
)

// Dump writes to w a readable representation of the block decoded from b.
func (d Decoder) Dump(w io.Writer, b []byte) error {
	if w == nil {
		return errors.New("nil writer")
	}
	t, err := d.Decode(b)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	dumpTable(bw, 0, t)
	bw.WriteByte('\n')
	return bw.Flush()
}

// Dump writes to w a readable representation of t.
func (t *Table) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	dumpTable(bw, 0, t)
	bw.WriteByte('\n')
	return bw.Flush()
}

func dumpTable(w *bufio.Writer, indent int, t *Table) {
	fmt.Fprintf(w, "Version: %d", t.Version)
	dumpNewline(w, indent)
	fmt.Fprintf(w, "Objects: (count:%d) {", len(t.Objects))
	for i, ref := range t.Objects {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "%d: %s (%s)", i, ref, t.Instance(ref).ClassName())
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
	dumpNewline(w, indent)
	fmt.Fprintf(w, "Instances: (count:%d) {", len(t.Instances))
	for i, inst := range t.Instances {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "#%d: ", i)
		dumpInstance(w, indent+1, inst)
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpInstance(w *bufio.Writer, indent int, inst *Instance) {
	if inst.IsNull() {
		w.WriteString("<null>")
		return
	}
	fmt.Fprintf(w, "%s (type:%08X crc:%08X) {", inst.Class.Name, inst.Class.TypeID, inst.Class.CRC)
	switch ud := inst.UserData; {
	case ud == nil:
		for i, f := range inst.Class.Fields {
			dumpNewline(w, indent+1)
			fmt.Fprintf(w, "%s: (%s) ", f.Name, f.Type)
			if i < len(inst.Values) {
				dumpValue(w, indent+1, inst.Values[i])
			}
		}
	case ud.Table != nil:
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Hash: %08X", ud.Hash)
		dumpNewline(w, indent+1)
		w.WriteString("Embedded: {")
		dumpNewline(w, indent+2)
		dumpTable(w, indent+2, ud.Table)
		dumpNewline(w, indent+1)
		w.WriteByte('}')
	default:
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Path: %q", ud.Path)
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpValue(w *bufio.Writer, indent int, v rszfile.Value) {
	arr, ok := v.(*rszfile.ValueArray)
	if !ok {
		if v == nil {
			w.WriteString("<nil>")
			return
		}
		w.WriteString(v.String())
		return
	}
	fmt.Fprintf(w, "(count:%d) {", len(arr.Values))
	for i, e := range arr.Values {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "%d: ", i)
		dumpValue(w, indent+1, e)
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpNewline(w *bufio.Writer, indent int) {
	w.WriteByte('\n')
	for i := 0; i < indent; i++ {
		w.WriteByte('\t')
	}
}
