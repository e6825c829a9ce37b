package vm

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// Snapshot is a point-in-time view of every loader's tables, for
// diagnostics.
type Snapshot struct {
	Classes int              `cbor:"classes"`
	Loaders []LoaderSnapshot `cbor:"loaders"`
}

// LoaderSnapshot describes one loader. Bootstrap comes first, then user
// loaders in registration order.
type LoaderSnapshot struct {
	ID        string   `cbor:"id"`
	Bootstrap bool     `cbor:"bootstrap"`
	Alive     bool     `cbor:"alive"` // loader object not yet collected
	Loaded    []string `cbor:"loaded"`
	Initiated []string `cbor:"initiated"`
	Loading   []string `cbor:"loading"`
	Pending   []string `cbor:"pending"`
	Libraries []string `cbor:"libraries,omitempty"`
}

// Snapshot captures the current state of all loaders.
func (vm *VM) Snapshot() *Snapshot {
	s := &Snapshot{Classes: vm.ClassCount()}
	s.Loaders = append(s.Loaders, vm.bootstrap.snapshot())
	for _, cl := range vm.registry.Loaders() {
		s.Loaders = append(s.Loaders, cl.snapshot())
	}
	return s
}

func (cl *ClassLoader) snapshot() LoaderSnapshot {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ls := LoaderSnapshot{
		ID:        cl.ID.String(),
		Bootstrap: cl.IsBootstrap(),
		Alive:     cl.Object() != nil,
		Loaded:    cl.loaded.Names(),
		Initiated: cl.initiated.Names(),
		Pending:   cl.pending.Names(),
		Loading:   make([]string, 0, len(cl.loading)),
	}
	for name := range cl.loading {
		ls.Loading = append(ls.Loading, name)
	}
	slices.Sort(ls.Loading)
	for _, lib := range cl.libraries {
		ls.Libraries = append(ls.Libraries, lib.Path)
	}
	return ls
}

// Find returns the snapshot of the loader with the given ID.
func (s *Snapshot) Find(id string) (LoaderSnapshot, bool) {
	for _, ls := range s.Loaders {
		if ls.ID == id {
			return ls, true
		}
	}
	return LoaderSnapshot{}, false
}

// MarshalSnapshot serializes s to canonical CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(s)
}

// UnmarshalSnapshot decodes a snapshot produced by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
