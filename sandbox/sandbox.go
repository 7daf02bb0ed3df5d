package sandbox

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/schemabuf/errors"
)

// PageSize is the WebAssembly memory page size in bytes.
const PageSize = 65536

// maxPages is the 4 GiB limit of 32-bit linear memory.
const maxPages = 65536

// Config sizes the guest memory in pages.
type Config struct {
	// InitialPages is the memory size at instantiation.
	InitialPages uint32
	// MaxPages bounds growth through Reserve.
	MaxPages uint32
}

// DefaultConfig returns one initial page and a 256 MiB ceiling.
func DefaultConfig() Config {
	return Config{
		InitialPages: 1,
		MaxPages:     4096,
	}
}

// Sandbox owns a wazero runtime and a guest memory.
type Sandbox struct {
	runtime wazero.Runtime
	memory  *Memory
	config  Config
	mu      sync.Mutex
}

// New instantiates a memory-only guest module.
func New(ctx context.Context, cfg Config) (*Sandbox, error) {
	if cfg.MaxPages == 0 || cfg.MaxPages > maxPages {
		return nil, errors.New(errors.PhaseSandbox, errors.KindInvalidLayout).
			Detail("max pages %d out of range [1, %d]", cfg.MaxPages, maxPages).
			Build()
	}
	if cfg.InitialPages > cfg.MaxPages {
		return nil, errors.New(errors.PhaseSandbox, errors.KindInvalidLayout).
			Detail("initial pages %d exceed max pages %d", cfg.InitialPages, cfg.MaxPages).
			Build()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MaxPages))

	mod, err := rt.Instantiate(ctx, guestModule(cfg.InitialPages, cfg.MaxPages))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseSandbox, errors.KindInvalidData, err, "instantiate guest module")
	}

	mem := mod.ExportedMemory(memoryExport)
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.New(errors.PhaseSandbox, errors.KindInvalidData).
			Detail("guest module does not export %q", memoryExport).
			Build()
	}

	Logger().Debug("sandbox created",
		zap.Uint32("initial_pages", cfg.InitialPages),
		zap.Uint32("max_pages", cfg.MaxPages))

	return &Sandbox{
		runtime: rt,
		memory:  WrapMemory(mem),
		config:  cfg,
	}, nil
}

// Memory returns the guest memory as a Buffer.
func (s *Sandbox) Memory() *Memory {
	return s.memory
}

// Reserve grows the guest memory so that size bytes are addressable.
// Growing never shrinks memory and previously read views become stale.
func (s *Sandbox) Reserve(size uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	needed := (uint64(size) + PageSize - 1) / PageSize
	current := uint64(s.memory.Size()) / PageSize
	if needed <= current {
		return nil
	}
	if needed > uint64(s.config.MaxPages) {
		return errors.New(errors.PhaseSandbox, errors.KindOutOfBounds).
			Detail("reserving %d bytes needs %d pages, limit is %d", size, needed, s.config.MaxPages).
			Build()
	}

	if _, ok := s.memory.mem.Grow(uint32(needed - current)); !ok {
		return errors.New(errors.PhaseSandbox, errors.KindOutOfBounds).
			Detail("memory grow from %d to %d pages failed", current, needed).
			Build()
	}
	Logger().Debug("sandbox memory grown",
		zap.Uint64("from_pages", current),
		zap.Uint64("to_pages", needed))
	return nil
}

// Close releases the runtime and the guest module.
func (s *Sandbox) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}
