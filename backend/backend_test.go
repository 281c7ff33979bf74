package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/sr/gpu"
	"github.com/gogpu/sr/gpu/gputest"
)

var testConfig = Config{Width: 64, Height: 32}

func recorderFactory(cfg Config) (gpu.Device, error) {
	return gputest.New(cfg.Width, cfg.Height), nil
}

func failingFactory(Config) (gpu.Device, error) {
	return nil, errors.New("no adapter")
}

// withRegistry runs the test against an empty registry and restores the
// previous contents afterwards.
func withRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = make(map[string]Factory)
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func TestRegisterAndGet(t *testing.T) {
	withRegistry(t)
	Register(BackendSoftware, recorderFactory)

	if !IsRegistered(BackendSoftware) {
		t.Fatal("software should be registered")
	}
	dev, err := Get(BackendSoftware, testConfig)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if w, h := dev.Size(); w != 64 || h != 32 {
		t.Errorf("Size() = %dx%d, want 64x32", w, h)
	}
}

func TestGetUnregistered(t *testing.T) {
	withRegistry(t)
	if _, err := Get("nonexistent", testConfig); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(nonexistent) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestGetInvalidSize(t *testing.T) {
	withRegistry(t)
	Register(BackendSoftware, recorderFactory)
	if _, err := Get(BackendSoftware, Config{Width: 0, Height: 10}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Get() error = %v, want ErrInvalidSize", err)
	}
}

func TestAvailableSorted(t *testing.T) {
	withRegistry(t)
	Register(BackendWGPU, recorderFactory)
	Register(BackendSoftware, recorderFactory)
	Register(BackendEbiten, recorderFactory)

	want := []string{BackendEbiten, BackendSoftware, BackendWGPU}
	if got := Available(); !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestDefaultPriority(t *testing.T) {
	tests := []struct {
		name       string
		registered map[string]Factory
		want       string
	}{
		{
			name:       "gpu first",
			registered: map[string]Factory{BackendSoftware: recorderFactory, BackendWGPU: recorderFactory},
			want:       BackendWGPU,
		},
		{
			name:       "skips failing factory",
			registered: map[string]Factory{BackendSoftware: recorderFactory, BackendWGPU: failingFactory},
			want:       BackendSoftware,
		},
		{
			name:       "unknown backend as last resort",
			registered: map[string]Factory{"custom": recorderFactory, BackendEbiten: failingFactory},
			want:       "custom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t)
			for name, f := range tt.registered {
				Register(name, f)
			}
			dev, name, err := Default(testConfig)
			if err != nil {
				t.Fatalf("Default() error = %v", err)
			}
			if dev == nil || name != tt.want {
				t.Errorf("Default() = %q, want %q", name, tt.want)
			}
		})
	}
}

func TestDefaultAllFail(t *testing.T) {
	withRegistry(t)
	Register(BackendWGPU, failingFactory)

	_, _, err := Default(testConfig)
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
	}

	Unregister(BackendWGPU)
	if IsRegistered(BackendWGPU) {
		t.Error("wgpu should be unregistered")
	}
	if _, _, err := Default(testConfig); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() on empty registry error = %v", err)
	}
}

func TestMustDefaultPanics(t *testing.T) {
	withRegistry(t)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("recovered %v, want ErrBackendNotAvailable", r)
		}
	}()
	MustDefault(testConfig)
}
