package vm

// userDelegate resolves names by calling the loader object's managed
// loadClass method.
type userDelegate struct{}

func (userDelegate) doLoadClass(t *Thread, cl *ClassLoader, name string) (*Class, error) {
	if cl.Object() == nil {
		cl.finishInitiation(t, name, true)
		return nil, newException(InternalError, "%s: loader object has been collected", cl)
	}

	c, err := cl.vm.runtime.InvokeLoadClass(t, cl, name)
	c, err = checkLoadClassResult(cl, name, c, err)
	cl.finishInitiation(t, name, err != nil)
	return c, err
}

// checkLoadClassResult translates the outcome of a managed loadClass call
// into the core's error taxonomy.
func checkLoadClassResult(cl *ClassLoader, name string, c *Class, err error) (*Class, error) {
	switch {
	case IsJavaException(err, ClassNotFoundException):
		log.Debugf("%s: loadClass(%s) threw %s", cl, name, err)
		return nil, wrapException(NoClassDefFoundError, err, "%s", name)
	case err != nil:
		if _, ok := asJavaException(err); ok {
			return nil, err
		}
		return nil, wrapException(InternalError, err, "%s.loadClass(%s): %v", cl, name, err)
	case c == nil:
		log.Warningf("%s: loadClass(%s) returned null", cl, name)
		return nil, newException(NoClassDefFoundError, "%s", name)
	case c.Name != name:
		log.Warningf("%s: loadClass(%s) returned %s", cl, name, c.Name)
		return nil, newException(NoClassDefFoundError, "%s (wrong name: %s)", name, c.Name)
	}
	return c, nil
}
