package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ParseBytes parses an in-memory class file image.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// classReader reads big-endian class file items.
type classReader struct {
	r   io.Reader
	buf [8]byte
}

func (cr *classReader) u1() (uint8, error) {
	if _, err := io.ReadFull(cr.r, cr.buf[:1]); err != nil {
		return 0, err
	}
	return cr.buf[0], nil
}

func (cr *classReader) u2() (uint16, error) {
	if _, err := io.ReadFull(cr.r, cr.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(cr.buf[:2]), nil
}

func (cr *classReader) u4() (uint32, error) {
	if _, err := io.ReadFull(cr.r, cr.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(cr.buf[:4]), nil
}

func (cr *classReader) u8() (uint64, error) {
	if _, err := io.ReadFull(cr.r, cr.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(cr.buf[:8]), nil
}

func (cr *classReader) bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(cr.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Parse reads a .class file from the given reader and returns a ClassFile.
// Only the structure needed to define and link a class is decoded; method
// bodies and other attributes are kept as raw bytes.
func Parse(r io.Reader) (*ClassFile, error) {
	cr := &classReader{r: r}
	cf := &ClassFile{}

	magic, err := cr.u4()
	if err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if cf.MinorVersion, err = cr.u2(); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if cf.MajorVersion, err = cr.u2(); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	cpCount, err := cr.u2()
	if err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	if cf.ConstantPool, err = parseConstantPool(cr, cpCount); err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}

	if cf.AccessFlags, err = cr.u2(); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if cf.ThisClass, err = cr.u2(); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if cf.SuperClass, err = cr.u2(); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}
	if _, err := cf.ClassName(); err != nil {
		return nil, fmt.Errorf("resolving this_class: %w", err)
	}

	interfacesCount, err := cr.u2()
	if err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = cr.u2(); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	fieldsCount, err := cr.u2()
	if err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	if cf.Fields, err = parseMembers(cr, cf.ConstantPool, "field", fieldsCount); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	methodsCount, err := cr.u2()
	if err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	if cf.Methods, err = parseMembers(cr, cf.ConstantPool, "method", methodsCount); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	attrCount, err := cr.u2()
	if err != nil {
		return nil, fmt.Errorf("reading class attributes count: %w", err)
	}
	if cf.Attributes, err = parseAttributeInfos(cr, cf.ConstantPool, attrCount); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseMembers(cr *classReader, pool []ConstantPoolEntry, kind string, count uint16) ([]MemberInfo, error) {
	members := make([]MemberInfo, count)
	for i := range members {
		accessFlags, err := cr.u2()
		if err != nil {
			return nil, fmt.Errorf("reading %s %d access flags: %w", kind, i, err)
		}
		nameIndex, err := cr.u2()
		if err != nil {
			return nil, fmt.Errorf("reading %s %d name index: %w", kind, i, err)
		}
		descIndex, err := cr.u2()
		if err != nil {
			return nil, fmt.Errorf("reading %s %d descriptor index: %w", kind, i, err)
		}
		attrCount, err := cr.u2()
		if err != nil {
			return nil, fmt.Errorf("reading %s %d attributes count: %w", kind, i, err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving %s %d name: %w", kind, i, err)
		}
		desc, err := GetUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
		}

		attrs, err := parseAttributeInfos(cr, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %d attributes: %w", kind, i, err)
		}

		members[i] = MemberInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return members, nil
}

func parseAttributeInfos(cr *classReader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIndex, err := cr.u2()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		length, err := cr.u4()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data, err := cr.bytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// InterfaceNames resolves the names of the directly implemented interfaces.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(cf.Interfaces))
	for _, idx := range cf.Interfaces {
		name, err := GetClassName(cf.ConstantPool, idx)
		if err != nil {
			return nil, fmt.Errorf("resolving interface: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MemberInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by name.
func (cf *ClassFile) FindField(name string) *MemberInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name {
			return &cf.Fields[i]
		}
	}
	return nil
}
