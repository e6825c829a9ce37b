package vm

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/daimatz/jload/pkg/classfile/classfiletest"
	"github.com/daimatz/jload/pkg/config"
	"github.com/sasha-s/go-deadlock"
)

func TestPreload(t *testing.T) {
	vm := newBootVM(t, Options{},
		classfiletest.New("app/A"),
		classfiletest.New("app/B").WithSuper("app/A"),
		classfiletest.New("app/C").WithSuper("app/B"),
	)
	names := []string{"app/C", "app/A", "app/B", "[Lapp/C;", "app/C"}

	classes, err := vm.Preload(context.Background(), nil, names, 2)
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	for i, c := range classes {
		if c == nil || c.Name != names[i] {
			t.Errorf("classes[%d]: got %v, want %s", i, c, names[i])
		}
	}
	if classes[0] != classes[4] {
		t.Error("same name preloaded into two classes")
	}

	_, err = vm.Preload(context.Background(), vm.Bootstrap(), []string{"app/A", "app/Missing"}, 0)
	assertException(t, err, NoClassDefFoundError)
}

func TestAttachCurrentThread(t *testing.T) {
	vm := New(Options{})

	th := vm.AttachCurrentThread("main")
	if got := vm.CurrentThread(); got != th {
		t.Errorf("CurrentThread: got %s, want %s", got, th)
	}

	done := make(chan *Thread)
	go func() { done <- vm.CurrentThread() }()
	if other := <-done; other == th || other.ID == th.ID {
		t.Errorf("another goroutine shares %s", th)
	}

	vm.DetachCurrentThread()
	if got := vm.CurrentThread(); got == th {
		t.Error("detached thread still current")
	}
	vm.DetachCurrentThread()
}

func TestSuspendCounter(t *testing.T) {
	th := NewThread("")
	th.DisableSuspend()
	th.DisableSuspend()
	th.EnableSuspend()
	if th.SuspendEnabled() {
		t.Error("enabled while one region is still open")
	}
	th.EnableSuspend()
	if !th.SuspendEnabled() {
		t.Error("disabled after all regions closed")
	}

	defer func() {
		if recover() == nil {
			t.Error("unbalanced EnableSuspend did not panic")
		}
	}()
	th.EnableSuspend()
}

func TestSnapshot(t *testing.T) {
	libDir := t.TempDir()
	writeLibrary(t, libDir, "codec")
	opts, err := OptionsFromConfig(&config.Config{Native: config.Native{SearchPath: []string{libDir}}})
	if err != nil {
		t.Fatal(err)
	}
	rt := NewClassPathRuntime()
	opts.Runtime = rt
	vm := newBootVM(t, opts)
	userDir := writeClasses(t, classfiletest.New("app/Main"))
	cl := vm.LookupLoader(rt.NewLoader(nil, openPath(t, userDir)))
	th := NewThread("main")
	if _, err := cl.LoadClass(th, "app/Main"); err != nil {
		t.Fatal(err)
	}
	if err := cl.LoadLibrary("codec"); err != nil {
		t.Fatal(err)
	}

	data, err := MarshalSnapshot(vm.Snapshot())
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	s, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	if s.Classes != 2 || len(s.Loaders) != 2 {
		t.Fatalf("got %d classes in %d loaders, want 2 in 2", s.Classes, len(s.Loaders))
	}
	boot := s.Loaders[0]
	if !boot.Bootstrap || !slices.Equal(boot.Loaded, []string{"java/lang/Object"}) {
		t.Errorf("bootstrap: %+v", boot)
	}
	user, ok := s.Find(cl.ID.String())
	if !ok {
		t.Fatalf("loader %s missing from snapshot", cl.ID)
	}
	if !user.Alive || !slices.Equal(user.Loaded, []string{"app/Main"}) || len(user.Libraries) != 1 {
		t.Errorf("user loader: %+v", user)
	}
	if !slices.Equal(user.Initiated, []string{"app/Main", "java/lang/Object"}) {
		t.Errorf("initiated: got %v", user.Initiated)
	}

	again, err := MarshalSnapshot(vm.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Error("snapshot encoding is not deterministic")
	}
}

func TestUnloadingGC(t *testing.T) {
	collector := NewReachabilityCollector(true)
	vm := newBootVM(t, Options{Runtime: &fakeRuntime{}, Collector: collector})
	kept := NewObject("test/Loader")
	collector.Retain(kept)
	vm.LookupLoader(kept)
	vm.LookupLoader(NewObject("test/Loader"))

	gc := NewUnloadingGC(vm, collector, time.Hour)
	if gc.LastStats() != nil {
		t.Error("stats before first sweep")
	}
	stats := gc.SweepNow()
	if stats.Loaders != 2 || stats.Unloaded != 1 {
		t.Errorf("stats: %+v", stats)
	}
	if gc.LastStats() != stats || gc.SweepCount() != 1 {
		t.Errorf("LastStats/SweepCount not updated")
	}

	gc.Start()
	gc.Start()
	gc.Stop()
	gc.Stop()
}

func TestOptionsFromConfig(t *testing.T) {
	dir := writeClasses(t, objectClass())
	cfg := config.Default()
	cfg.ClassPath.Boot = []string{dir}
	cfg.Loading.Verify = false
	cfg.Loading.MaxClasses = 10
	cfg.GC.ClassUnloading = false

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer opts.BootClassPath.Close()

	if !opts.NoVerify || opts.MaxClasses != 10 || len(opts.BootClassPath) != 1 {
		t.Errorf("options: %+v", opts)
	}
	if opts.Collector.SupportsClassUnloading() {
		t.Error("collector supports unloading despite class-unloading = false")
	}

	vm := New(opts)
	if _, err := vm.Bootstrap().LoadClass(NewThread("main"), "java/lang/Object"); err != nil {
		t.Errorf("LoadClass through configured VM: %v", err)
	}

	cfg.ClassPath.Boot = []string{dir + "/missing"}
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("missing boot class path entry accepted")
	}
}

func TestLockDiagnostics(t *testing.T) {
	saved := deadlock.Opts.Disable
	savedTimeout := deadlock.Opts.DeadlockTimeout
	t.Cleanup(func() {
		deadlock.Opts.Disable = saved
		deadlock.Opts.DeadlockTimeout = savedTimeout
	})

	if got, want := deadlock.Opts.Disable, !config.Default().Debug.DeadlockDetection; got != want {
		t.Errorf("detection disabled before configuration: got %v, want %v", got, want)
	}

	ConfigureLockDiagnostics(config.Debug{
		DeadlockDetection: true,
		DeadlockTimeout:   config.Duration{Duration: 2 * time.Minute},
	})
	if deadlock.Opts.Disable || deadlock.Opts.DeadlockTimeout != 2*time.Minute {
		t.Errorf("after ConfigureLockDiagnostics: disable %v timeout %v", deadlock.Opts.Disable, deadlock.Opts.DeadlockTimeout)
	}
}
