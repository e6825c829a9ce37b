package vm

// ManagedRuntime is the bridge to managed code. The core calls it without
// holding any loader or registry lock, with suspension enabled.
type ManagedRuntime interface {
	// InvokeLoadClass calls loadClass(name) on the loader's managed
	// object. It returns the resulting class, or the thrown exception as a
	// *JavaException.
	InvokeLoadClass(t *Thread, loader *ClassLoader, name string) (*Class, error)

	// RegisterClass allocates the managed mirror for a newly defined class.
	RegisterClass(t *Thread, loader *ClassLoader, c *Class) (*JObject, error)
}

// noRuntime is used when the embedder supplies no managed runtime. Only the
// bootstrap loader can work without one.
type noRuntime struct{}

func (noRuntime) InvokeLoadClass(t *Thread, loader *ClassLoader, name string) (*Class, error) {
	return nil, newException(InternalError, "%s: no managed runtime to run loadClass(%s)", loader, name)
}

func (noRuntime) RegisterClass(t *Thread, loader *ClassLoader, c *Class) (*JObject, error) {
	return nil, newException(InternalError, "%s: no managed runtime to register %s", loader, c.Name)
}
