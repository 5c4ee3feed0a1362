package submit

import (
	"sync"

	"github.com/dxvkgo/core/internal/gpu"
)

// CommandListPool recycles gpu.CommandList handles across frames
// instead of creating and freeing one per submission, the same
// free-list idiom resource.allocPool uses for Allocations (spec.md §5:
// "Application/render threads (any number) build command lists").
type CommandListPool struct {
	dev gpu.CommandDevice

	mu   sync.Mutex
	free []gpu.CommandList
}

func NewCommandListPool(dev gpu.CommandDevice) *CommandListPool {
	return &CommandListPool{dev: dev}
}

// Acquire returns a command list ready to record: either a reset one
// from the free list, or a freshly created one.
func (p *CommandListPool) Acquire() (gpu.CommandList, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		cl := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return cl, nil
	}
	p.mu.Unlock()

	cl, err := p.dev.NewCommandList()
	if err != nil {
		return gpu.CommandList{}, err
	}
	return cl, nil
}

// Release resets cl and returns it to the free list for reuse. A
// reset failure drops cl instead of risking a corrupt recording on
// its next use.
func (p *CommandListPool) Release(cl gpu.CommandList) {
	if err := p.dev.ResetCommandList(cl); err != nil {
		p.dev.FreeCommandList(cl)
		return
	}
	p.mu.Lock()
	p.free = append(p.free, cl)
	p.mu.Unlock()
}

// Close frees every command list currently on the free list.
func (p *CommandListPool) Close() {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()
	for _, cl := range free {
		p.dev.FreeCommandList(cl)
	}
}
