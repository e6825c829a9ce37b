package vm

import (
	"fmt"
	"sync/atomic"

	"github.com/daimatz/jload/pkg/classfile"
)

// ClassState is the lifecycle state of a Class.
type ClassState int32

const (
	StateLoading ClassState = iota
	StateLoaded
	StateVerified
	StatePrepared
	StateError
)

func (s ClassState) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StateLoaded:
		return "Loaded"
	case StateVerified:
		return "Verified"
	case StatePrepared:
		return "Prepared"
	case StateError:
		return "Error"
	}
	return fmt.Sprintf("ClassState(%d)", int32(s))
}

// Class is a class entity, identified by (Name, Loader). It is owned by its
// defining loader and lives until that loader is destroyed.
type Class struct {
	Name   string
	Loader *ClassLoader // defining loader

	// File is the parsed class file; nil for array and primitive classes.
	File       *classfile.ClassFile
	Super      *Class
	Interfaces []*Class

	// Component is the element type of an array class.
	Component *Class
	Primitive bool

	// Field layout computed during preparation. Instance field counts
	// include inherited fields.
	NumInstanceFields int
	NumStaticFields   int

	// Mirror is the managed java/lang/Class object. It does not own the
	// class.
	Mirror *JObject

	state  atomic.Int32
	marked atomic.Bool
}

func newClass(name string, loader *ClassLoader) *Class {
	c := &Class{Name: name, Loader: loader}
	c.state.Store(int32(StateLoading))
	return c
}

// State returns the lifecycle state.
func (c *Class) State() ClassState {
	return ClassState(c.state.Load())
}

func (c *Class) setState(s ClassState) {
	c.state.Store(int32(s))
}

// IsArray reports whether c is an array class.
func (c *Class) IsArray() bool {
	return c.Component != nil
}

// IsInterface reports whether c was declared as an interface.
func (c *Class) IsInterface() bool {
	return c.File != nil && c.File.IsInterface()
}

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Super {
		if current == other {
			return true
		}
	}
	return false
}

// Implements reports whether iface is among the interfaces of c or of any
// superclass, directly or through superinterfaces.
func (c *Class) Implements(iface *Class) bool {
	for current := c; current != nil; current = current.Super {
		for _, i := range current.Interfaces {
			if i == iface || i.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// Mark sets the class mark bit and marks the defining loader reachable.
func (c *Class) Mark() {
	c.marked.Store(true)
	if c.Loader != nil {
		c.Loader.marked.Store(true)
	}
}

// IsMarked reports the class mark bit.
func (c *Class) IsMarked() bool {
	return c.marked.Load()
}

func (c *Class) String() string {
	if c.Loader == nil {
		return c.Name
	}
	return fmt.Sprintf("%s@%s", c.Name, c.Loader)
}
