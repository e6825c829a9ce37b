package vm

import (
	"fmt"

	"github.com/daimatz/jload/pkg/classfile"
)

// Parser turns a class file image into a ClassFile.
type Parser interface {
	Parse(data []byte) (*classfile.ClassFile, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(data []byte) (*classfile.ClassFile, error)

func (f ParserFunc) Parse(data []byte) (*classfile.ClassFile, error) { return f(data) }

// Verifier checks a loaded class whose ancestors have been resolved.
type Verifier interface {
	Verify(c *Class) error
}

// Preparer lays out a verified class.
type Preparer interface {
	Prepare(c *Class) error
}

const (
	minMajorVersion = 45
	maxMajorVersion = 69
)

// StructuralVerifier checks class-level constraints: a supported version and
// a well-formed superclass and interface graph. Method bodies are not
// examined.
type StructuralVerifier struct{}

func (StructuralVerifier) Verify(c *Class) error {
	cf := c.File
	if cf.MajorVersion < minMajorVersion || cf.MajorVersion > maxMajorVersion {
		return fmt.Errorf("unsupported class file version %d.%d", cf.MajorVersion, cf.MinorVersion)
	}

	if c.Name == "java/lang/Object" {
		if c.Super != nil {
			return fmt.Errorf("java/lang/Object must not have a superclass")
		}
		return nil
	}
	if c.Super == nil {
		return fmt.Errorf("no superclass")
	}
	if c.Super.IsInterface() {
		return fmt.Errorf("superclass %s is an interface", c.Super.Name)
	}
	if c.Super.File != nil && c.Super.File.IsFinal() {
		return fmt.Errorf("cannot inherit from final class %s", c.Super.Name)
	}
	if c.IsInterface() && c.Super.Name != "java/lang/Object" {
		return fmt.Errorf("interface superclass must be java/lang/Object, not %s", c.Super.Name)
	}
	for _, iface := range c.Interfaces {
		if !iface.IsInterface() {
			return fmt.Errorf("%s is not an interface", iface.Name)
		}
	}
	return nil
}

// FieldLayoutPreparer counts instance and static field slots. Instance
// slots include those inherited from the superclass.
type FieldLayoutPreparer struct{}

func (FieldLayoutPreparer) Prepare(c *Class) error {
	if c.Super != nil {
		if c.Super.State() != StatePrepared {
			return fmt.Errorf("superclass %s is %s", c.Super.Name, c.Super.State())
		}
		c.NumInstanceFields = c.Super.NumInstanceFields
	}
	for i := range c.File.Fields {
		if c.File.Fields[i].IsStatic() {
			c.NumStaticFields++
		} else {
			c.NumInstanceFields++
		}
	}
	return nil
}
