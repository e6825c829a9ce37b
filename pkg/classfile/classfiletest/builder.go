// Package classfiletest synthesizes minimal class file images for tests.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/daimatz/jload/pkg/classfile"
)

// Field describes a field to emit.
type Field struct {
	Name       string
	Descriptor string
	Flags      uint16
}

// Builder accumulates the pieces of a class file. The zero value is not
// usable; start from New.
type Builder struct {
	Name       string
	Super      string
	Interfaces []string
	Flags      uint16
	Major      uint16
	Fields     []Field
	Methods    []Field

	pool  [][]byte
	utf8s map[string]uint16
	refs  map[string]uint16
}

// New returns a builder for a public class extending java/lang/Object.
func New(name string) *Builder {
	return &Builder{
		Name:  name,
		Super: "java/lang/Object",
		Flags: classfile.AccPublic | classfile.AccSuper,
		Major: 61,
	}
}

// WithSuper sets the superclass; "" emits super_class = 0.
func (b *Builder) WithSuper(super string) *Builder {
	b.Super = super
	return b
}

// WithInterfaces appends implemented interfaces.
func (b *Builder) WithInterfaces(names ...string) *Builder {
	b.Interfaces = append(b.Interfaces, names...)
	return b
}

// WithFlags replaces the access flags.
func (b *Builder) WithFlags(flags uint16) *Builder {
	b.Flags = flags
	return b
}

// WithField appends a field.
func (b *Builder) WithField(name, descriptor string, flags uint16) *Builder {
	b.Fields = append(b.Fields, Field{Name: name, Descriptor: descriptor, Flags: flags})
	return b
}

// WithMethod appends an abstract-looking method without a Code attribute.
func (b *Builder) WithMethod(name, descriptor string, flags uint16) *Builder {
	b.Methods = append(b.Methods, Field{Name: name, Descriptor: descriptor, Flags: flags})
	return b
}

// Interface marks the class as an interface.
func (b *Builder) Interface() *Builder {
	b.Flags = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	return b
}

func (b *Builder) utf8(s string) uint16 {
	if idx, ok := b.utf8s[s]; ok {
		return idx
	}
	var e bytes.Buffer
	e.WriteByte(classfile.TagUtf8)
	binary.Write(&e, binary.BigEndian, uint16(len(s)))
	e.WriteString(s)
	b.pool = append(b.pool, e.Bytes())
	idx := uint16(len(b.pool))
	b.utf8s[s] = idx
	return idx
}

func (b *Builder) class(name string) uint16 {
	if idx, ok := b.refs[name]; ok {
		return idx
	}
	nameIdx := b.utf8(name)
	var e bytes.Buffer
	e.WriteByte(classfile.TagClass)
	binary.Write(&e, binary.BigEndian, nameIdx)
	b.pool = append(b.pool, e.Bytes())
	idx := uint16(len(b.pool))
	b.refs[name] = idx
	return idx
}

// Bytes encodes the class file.
func (b *Builder) Bytes() []byte {
	b.pool = nil
	b.utf8s = make(map[string]uint16)
	b.refs = make(map[string]uint16)

	this := b.class(b.Name)
	var super uint16
	if b.Super != "" {
		super = b.class(b.Super)
	}
	ifaces := make([]uint16, len(b.Interfaces))
	for i, name := range b.Interfaces {
		ifaces[i] = b.class(name)
	}
	type member struct{ flags, name, desc uint16 }
	encodeMembers := func(fs []Field) []member {
		ms := make([]member, len(fs))
		for i, f := range fs {
			ms[i] = member{f.Flags, b.utf8(f.Name), b.utf8(f.Descriptor)}
		}
		return ms
	}
	fields := encodeMembers(b.Fields)
	methods := encodeMembers(b.Methods)

	var out bytes.Buffer
	w := func(v any) { binary.Write(&out, binary.BigEndian, v) }
	w(uint32(0xCAFEBABE))
	w(uint16(0))
	w(b.Major)
	w(uint16(len(b.pool) + 1))
	for _, e := range b.pool {
		out.Write(e)
	}
	w(b.Flags)
	w(this)
	w(super)
	w(uint16(len(ifaces)))
	for _, idx := range ifaces {
		w(idx)
	}
	for _, ms := range [][]member{fields, methods} {
		w(uint16(len(ms)))
		for _, m := range ms {
			w(m.flags)
			w(m.name)
			w(m.desc)
			w(uint16(0))
		}
	}
	w(uint16(0))
	return out.Bytes()
}

// WriteFile writes the class under root using its binary name as the path.
func (b *Builder) WriteFile(root string) (string, error) {
	path := filepath.Join(root, filepath.FromSlash(b.Name)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b.Bytes(), 0o644)
}
