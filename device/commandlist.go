package device

import "github.com/dxvkgo/core/internal/gpu"

// CreateCommandList implements spec.md §6's create_command_list,
// backed by the recycle pool submit.CommandListPool maintains.
func (d *Device) CreateCommandList() (gpu.CommandList, error) {
	cl, err := d.cmdPool.Acquire()
	if err != nil {
		return nil, wrap(KindSubmission, err, "device: create command list")
	}
	return cl, nil
}

// ReleaseCommandList returns cl to the recycle pool once its
// submission has been synchronized.
func (d *Device) ReleaseCommandList(cl gpu.CommandList) {
	d.cmdPool.Release(cl)
}
