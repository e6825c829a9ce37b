package vm

import (
	"errors"

	"github.com/daimatz/jload/pkg/classpath"
)

// bootstrapDelegate resolves names against the boot classpath and defines
// the classes it finds itself.
type bootstrapDelegate struct {
	path classpath.Path
}

func (d *bootstrapDelegate) doLoadClass(t *Thread, cl *ClassLoader, name string) (*Class, error) {
	data, from, err := d.path.ReadClass(name)
	if err != nil {
		// Another thread may have claimed the record through DefineClass
		// while the path was probed; its definition stands.
		cl.finishInitiation(t, name, true)
		if errors.Is(err, classpath.ErrNotFound) {
			return nil, newException(NoClassDefFoundError, "%s", name)
		}
		return nil, wrapException(NoClassDefFoundError, err, "%s: %v", name, err)
	}
	log.Debugf("bootstrap: found %s in %s", name, from)

	return cl.define(t, name, true, func() (*Class, error) {
		return cl.linkClass(t, name, data, nil)
	})
}
