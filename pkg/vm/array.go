package vm

import "strings"

// primitiveTypes maps field descriptor letters to primitive class names.
var primitiveTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
}

func isArrayName(name string) bool {
	return strings.HasPrefix(name, "[")
}

// arrayElementName returns the element type named by an array class name,
// stripping one dimension: "[[I" -> "[I", "[Ljava/lang/String;" ->
// "java/lang/String", "[I" -> "int".
func arrayElementName(name string) (elem string, primitive bool, ok bool) {
	rest := strings.TrimPrefix(name, "[")
	switch {
	case rest == "":
		return "", false, false
	case rest[0] == '[':
		return rest, false, true
	case rest[0] == 'L':
		if len(rest) < 3 || !strings.HasSuffix(rest, ";") {
			return "", false, false
		}
		return rest[1 : len(rest)-1], false, true
	case len(rest) == 1:
		p, found := primitiveTypes[rest[0]]
		return p, true, found
	}
	return "", false, false
}

// loadArrayClass resolves an array class. The element type is resolved
// through cl; the array itself is defined by the element's defining loader,
// with primitive elements belonging to the bootstrap loader.
func (cl *ClassLoader) loadArrayClass(t *Thread, name string) (*Class, error) {
	elemName, primitive, ok := arrayElementName(name)
	if !ok {
		return nil, newException(NoClassDefFoundError, "%s: malformed array class name", name)
	}

	var elem *Class
	if primitive {
		elem = cl.vm.primitives[elemName]
	} else {
		var err error
		if elem, err = cl.LoadClass(t, elemName); err != nil {
			return nil, err
		}
	}

	if owner := elem.Loader; owner != cl {
		c, err := owner.LoadClass(t, name)
		if err != nil {
			return nil, err
		}
		cl.RecordInitiated(name, c)
		return c, nil
	}

	c, err := cl.startLoading(t, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c, err = cl.define(t, name, true, func() (*Class, error) {
			return cl.linkArrayClass(t, name, elem)
		})
		if err != nil {
			return nil, err
		}
	}
	cl.RecordInitiated(name, c)
	return c, nil
}

func (cl *ClassLoader) linkArrayClass(t *Thread, name string, elem *Class) (*Class, error) {
	object, err := cl.vm.bootstrap.LoadClass(t, "java/lang/Object")
	if err != nil {
		return nil, err
	}
	if err := cl.vm.reserveClass(); err != nil {
		return nil, err
	}

	c := newClass(name, cl)
	c.Component = elem
	c.Super = object
	c.setState(StatePrepared)
	if _, err := cl.publish(t, c); err != nil {
		c.setState(StateError)
		cl.vm.releaseClasses(1)
		return nil, err
	}
	return c, nil
}

func newPrimitiveClasses(bootstrap *ClassLoader) map[string]*Class {
	classes := make(map[string]*Class, len(primitiveTypes)+1)
	for _, name := range append([]string{"void"}, primitiveNames()...) {
		c := newClass(name, bootstrap)
		c.Primitive = true
		c.setState(StatePrepared)
		classes[name] = c
	}
	return classes
}

func primitiveNames() []string {
	names := make([]string, 0, len(primitiveTypes))
	for _, name := range primitiveTypes {
		names = append(names, name)
	}
	return names
}
