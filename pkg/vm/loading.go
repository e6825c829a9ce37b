package vm

import (
	"errors"
	"slices"
	"sync"
)

// errAlreadyDefined reports that the name is already in the loaded table.
var errAlreadyDefined = errors.New("vm: class already defined")

// loadingRecord tracks one in-progress (loader, name) resolution. All fields
// are guarded by the owning loader's mutex, which is also cond's Locker.
type loadingRecord struct {
	initiator ThreadID
	definer   ThreadID
	waiting   []ThreadID
	cond      *sync.Cond
}

func (cl *ClassLoader) newRecord(initiator ThreadID) *loadingRecord {
	return &loadingRecord{
		initiator: initiator,
		cond:      sync.NewCond(&cl.mu),
	}
}

func (r *loadingRecord) isInitiator(id ThreadID) bool { return r.initiator == id }

func (r *loadingRecord) isDefiner(id ThreadID) bool { return r.definer == id }

// addWaiting enqueues id unless it is already queued.
func (r *loadingRecord) addWaiting(id ThreadID) {
	if id == 0 || slices.Contains(r.waiting, id) {
		return
	}
	r.waiting = append(r.waiting, id)
}

func (r *loadingRecord) removeWaiting(id ThreadID) {
	if i := slices.Index(r.waiting, id); i >= 0 {
		r.waiting = slices.Delete(r.waiting, i, i+1)
	}
}

// wait blocks t until rec is completed by success or failure. Must be
// called with the loader lock held; suspension is enabled while blocked.
func (cl *ClassLoader) wait(t *Thread, rec *loadingRecord) {
	rec.addWaiting(t.ID)
	t.EnableSuspend()
	rec.cond.Wait()
	t.DisableSuspend()
	rec.removeWaiting(t.ID)
}

// startLoading enters the loading protocol for name on behalf of t.
//
// It returns the class if it is already loaded. It returns (nil, nil) when
// the caller should go on and resolve the class itself: either t created
// the record as initiator, or (for user loaders) t was queued as a waiting
// thread and resolves through delegation. A thread that is already the
// initiator or definer of the record gets ClassCircularityError.
//
// Only the bootstrap loader blocks here.
func (cl *ClassLoader) startLoading(t *Thread, name string) (*Class, error) {
	cl.lock(t)
	defer cl.unlock(t)

	waited := false
	for {
		if c := cl.loaded.Lookup(name); c != nil {
			return c, nil
		}

		rec := cl.loading[name]
		if rec == nil {
			cl.loading[name] = cl.newRecord(t.ID)
			log.Debugf("%s: %s initiates %s", cl, t, name)
			return nil, nil
		}

		if rec.isInitiator(t.ID) || rec.isDefiner(t.ID) {
			log.Debugf("%s: circular load of %s by %s", cl, name, t)
			return nil, newException(ClassCircularityError, "%s", name)
		}

		if !cl.IsBootstrap() {
			rec.addWaiting(t.ID)
			return nil, nil
		}

		// After a wait, a record nobody is defining is taken over so the
		// caller does not sleep behind an initiator that went nowhere.
		if waited && rec.definer == 0 {
			rec.addWaiting(rec.initiator)
			rec.initiator = t.ID
			rec.removeWaiting(t.ID)
			log.Debugf("%s: %s takes over initiation of %s", cl, t, name)
			return nil, nil
		}

		cl.wait(t, rec)
		waited = true
	}
}

// claimDefiner makes t the definer of name. Must be called with the loader
// lock held.
//
// If the name is already loaded it returns the class with
// errAlreadyDefined. If t already defines the name it returns
// ClassCircularityError. If another thread is defining it, t waits for
// that attempt to finish and re-evaluates.
func (cl *ClassLoader) claimDefiner(t *Thread, name string) (*Class, error) {
	for {
		if c := cl.loaded.Lookup(name); c != nil {
			return c, errAlreadyDefined
		}

		rec := cl.loading[name]
		if rec == nil {
			rec = cl.newRecord(t.ID)
			cl.loading[name] = rec
		}

		switch rec.definer {
		case 0:
			if rec.initiator != t.ID {
				rec.addWaiting(rec.initiator)
			}
			rec.initiator = t.ID
			rec.definer = t.ID
			rec.removeWaiting(t.ID)
			log.Debugf("%s: %s defines %s", cl, t, name)
			return nil, nil
		case t.ID:
			return nil, newException(ClassCircularityError, "%s", name)
		}

		cl.wait(t, rec)
	}
}

// success retires the record for name after the class has been inserted
// into the loaded table. Must be called with the loader lock held.
func (cl *ClassLoader) success(name string) {
	if rec := cl.loading[name]; rec != nil {
		delete(cl.loading, name)
		rec.cond.Broadcast()
	}
}

// failure retires the record for name so the next request starts from
// scratch, and drops any stale pending entry. Only the definer, or the
// initiator of a record nobody defines, retires it; any other thread just
// leaves the waiting queue.
func (cl *ClassLoader) failure(t *Thread, name string) {
	cl.lock(t)
	defer cl.unlock(t)

	rec := cl.loading[name]
	if rec != nil && !rec.isDefiner(t.ID) && !(rec.definer == 0 && rec.isInitiator(t.ID)) {
		rec.removeWaiting(t.ID)
		return
	}
	if rec != nil {
		rec.cond.Broadcast()
		delete(cl.loading, name)
	}
	cl.pending.Remove(name)
	log.Debugf("%s: loading %s failed in %s", cl, name, t)
}

// finishInitiation releases t's part in the record for name once a
// delegated resolution has returned. A record that t initiated and nobody
// went on to define is retired; a waiting entry is dropped.
func (cl *ClassLoader) finishInitiation(t *Thread, name string, failed bool) {
	cl.lock(t)
	defer cl.unlock(t)

	rec := cl.loading[name]
	if rec == nil {
		return
	}
	if rec.definer == 0 && rec.isInitiator(t.ID) {
		rec.cond.Broadcast()
		delete(cl.loading, name)
		if failed {
			cl.pending.Remove(name)
		}
		return
	}
	rec.removeWaiting(t.ID)
}

// isLoading reports whether a loading record exists for name.
func (cl *ClassLoader) isLoading(name string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	_, ok := cl.loading[name]
	return ok
}
