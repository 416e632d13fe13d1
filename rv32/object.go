package rv32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/ir"
)

// Object is a relocatable compilation result. The code section is the
// same pc-relative stream the JIT path produces; the tables let an
// offline linker place it and rebind the numeric routines.
type Object struct {
	Code    []byte
	Symbols []Symbol
	Relocs  []Reloc

	// Listings holds per-function diagnostic text, keyed by symbol
	// name. Populated only when ObjectOptions.Disassemble is set;
	// Marshal does not serialize it.
	Listings map[string]Listing
}

// ObjectOptions controls the ahead-of-time emission path.
type ObjectOptions struct {
	// Disassemble captures a block-structured listing and textual
	// disassembly for every function. Off by default; rendering the
	// text allocates and most callers only want the code.
	Disassemble bool
}

// Listing is the captured diagnostic text for one function.
type Listing struct {
	Blocks string // block-structured listing of the emitted function
	Asm    string // textual disassembly of its code
}

// Symbol names a function inside the code section.
type Symbol struct {
	Name    string
	Offset  int
	Size    int
	NumArgs int
	HasRet  bool
}

// RelocKind distinguishes how a site encodes its target.
type RelocKind uint8

const (
	// RelocJAL marks a pc-relative jal to a function in this object.
	// Already resolved; recorded so a linker can re-split the module.
	RelocJAL RelocKind = iota
	// RelocAbs marks a lui/addi pair holding the absolute address of
	// an external routine (an fx_ symbol). The assembled bits point at
	// the emulator's call window.
	RelocAbs
)

func (k RelocKind) String() string {
	switch k {
	case RelocJAL:
		return "jal"
	case RelocAbs:
		return "abs"
	}
	return "reloc?"
}

// Reloc records one relocation site.
type Reloc struct {
	Offset int // byte offset into Code
	Kind   RelocKind
	Symbol string
}

// EmitObject compiles the program into a relocatable object with
// default options.
func EmitObject(prog *ir.Program, reg *builtin.Registry) (*Object, error) {
	return EmitObjectWith(prog, reg, ObjectOptions{})
}

// EmitObjectWith compiles the program into a relocatable object.
func EmitObjectWith(prog *ir.Program, reg *builtin.Registry, opts ObjectOptions) (*Object, error) {
	a, infos, err := emitAll(prog, reg)
	if err != nil {
		return nil, err
	}

	obj := &Object{Code: a.bytes(), Relocs: a.relocs}
	for name, info := range infos {
		obj.Symbols = append(obj.Symbols, Symbol{
			Name:    name,
			Offset:  info.Offset,
			Size:    info.Size,
			NumArgs: info.NumArgs,
			HasRet:  info.HasRet,
		})
	}
	sort.Slice(obj.Symbols, func(i, j int) bool {
		return obj.Symbols[i].Offset < obj.Symbols[j].Offset
	})

	if opts.Disassemble {
		obj.Listings = make(map[string]Listing, len(obj.Symbols))
		for _, s := range obj.Symbols {
			l := Listing{Asm: Disassemble(obj.Code[s.Offset : s.Offset+s.Size])}
			if f := prog.Lookup(s.Name); f != nil {
				l.Blocks = f.String()
			}
			obj.Listings[s.Name] = l
		}
	}
	return obj, nil
}

// objMagic identifies the serialized object format.
const objMagic = 0x4658_4F31 // "FXO1"

// Marshal serializes the object into a self-describing little-endian
// blob: header, code, symbol table, relocation table.
func (o *Object) Marshal() []byte {
	var buf bytes.Buffer
	w := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	ws := func(s string) {
		w(uint32(len(s)))
		buf.WriteString(s)
	}

	w(objMagic)
	w(uint32(len(o.Code)))
	buf.Write(o.Code)

	w(uint32(len(o.Symbols)))
	for _, s := range o.Symbols {
		ws(s.Name)
		w(uint32(s.Offset))
		w(uint32(s.Size))
		flags := uint32(s.NumArgs)
		if s.HasRet {
			flags |= 1 << 8
		}
		w(flags)
	}

	w(uint32(len(o.Relocs)))
	for _, r := range o.Relocs {
		ws(r.Symbol)
		w(uint32(r.Offset))
		w(uint32(r.Kind))
	}
	return buf.Bytes()
}

// UnmarshalObject parses a blob produced by Marshal.
func UnmarshalObject(data []byte) (*Object, error) {
	r := &reader{data: data}
	if r.u32() != objMagic {
		return nil, fmt.Errorf("rv32: not an object file")
	}

	o := &Object{}
	o.Code = r.bytes(int(r.u32()))

	nsyms := int(r.u32())
	for i := 0; i < nsyms && r.err == nil; i++ {
		s := Symbol{Name: r.str()}
		s.Offset = int(r.u32())
		s.Size = int(r.u32())
		flags := r.u32()
		s.NumArgs = int(flags & 0xFF)
		s.HasRet = flags&(1<<8) != 0
		o.Symbols = append(o.Symbols, s)
	}

	nrel := int(r.u32())
	for i := 0; i < nrel && r.err == nil; i++ {
		rel := Reloc{Symbol: r.str()}
		rel.Offset = int(r.u32())
		rel.Kind = RelocKind(r.u32())
		o.Relocs = append(o.Relocs, rel)
	}

	if r.err != nil {
		return nil, fmt.Errorf("rv32: truncated object file")
	}
	return o, nil
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("short read")
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("short read")
		return nil
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:])
	r.pos += n
	return out
}

func (r *reader) str() string { return string(r.bytes(int(r.u32()))) }

// Module converts a loaded object back into an executable module.
func (o *Object) Module() *Module {
	m := &Module{Code: o.Code, Funcs: make(map[string]FuncInfo, len(o.Symbols))}
	for _, s := range o.Symbols {
		m.Funcs[s.Name] = FuncInfo{
			Offset:  s.Offset,
			Size:    s.Size,
			NumArgs: s.NumArgs,
			HasRet:  s.HasRet,
		}
	}
	return m
}
