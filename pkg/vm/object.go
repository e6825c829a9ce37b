package vm

// JObject represents a managed object instance. The core only handles loader
// objects and class mirrors, and only by reference.
type JObject struct {
	ClassName string
	Fields    map[string]any
}

// NewObject allocates a managed object of the named class.
func NewObject(className string) *JObject {
	return &JObject{
		ClassName: className,
		Fields:    make(map[string]any),
	}
}
