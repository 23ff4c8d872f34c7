//go:build gpu

package gpubackend

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// CommandState is the four-state machine spec.md §4.5 assigns to
// every named command buffer.
type CommandState int

const (
	CommandUndefined CommandState = iota
	CommandRecording
	CommandRecorded
	CommandSubmitted
)

func (s CommandState) String() string {
	switch s {
	case CommandUndefined:
		return "UNDEFINED"
	case CommandRecording:
		return "RECORDING"
	case CommandRecorded:
		return "RECORDED"
	case CommandSubmitted:
		return "SUBMITTED"
	default:
		return "UNKNOWN"
	}
}

// Command is one named command buffer tracked through
// UNDEFINED -> RECORDING -> RECORDED -> SUBMITTED.
type Command struct {
	Name  string
	state CommandState

	d       *Device
	encoder *wgpu.CommandEncoder
	buffer  *wgpu.CommandBuffer
}

// NewCommand creates a command buffer in the UNDEFINED state.
func (d *Device) NewCommand(name string) *Command {
	return &Command{Name: name, d: d, state: CommandUndefined}
}

// Begin transitions UNDEFINED -> RECORDING by creating the backing
// command encoder.
func (c *Command) Begin() error {
	if c.state != CommandUndefined {
		return wrapGPUError("gpubackend.Command.Begin", fmt.Errorf("%s: cannot begin from state %s", c.Name, c.state))
	}
	enc, err := c.d.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: c.Name})
	if err != nil {
		return wrapGPUError("gpubackend.Command.Begin", err)
	}
	c.encoder = enc
	c.state = CommandRecording
	return nil
}

// Encoder exposes the underlying *wgpu.CommandEncoder while RECORDING,
// for callers (Immediate, which hands it to ComputePipeline.Dispatch)
// that need to record compute passes and buffer copies directly.
func (c *Command) Encoder() (*wgpu.CommandEncoder, error) {
	if c.state != CommandRecording {
		return nil, wrapGPUError("gpubackend.Command.Encoder", fmt.Errorf("%s: not recording (state=%s)", c.Name, c.state))
	}
	return c.encoder, nil
}

// End transitions RECORDING -> RECORDED by finishing the encoder.
func (c *Command) End() error {
	if c.state != CommandRecording {
		return wrapGPUError("gpubackend.Command.End", fmt.Errorf("%s: cannot end from state %s", c.Name, c.state))
	}
	buf, err := c.encoder.Finish(&wgpu.CommandBufferDescriptor{Label: c.Name})
	if err != nil {
		return wrapGPUError("gpubackend.Command.End", err)
	}
	c.buffer = buf
	c.state = CommandRecorded
	return nil
}

// Fence is the optional completion signal Submit may be given,
// closed once the device has finished processing the submission.
// WebGPU has no standalone fence object (unlike Vulkan); this is
// built on Device.Queue's OnSubmittedWorkDone callback plus a polling
// loop, the same mechanism gpu/buffer.go's ReadBuffer uses to wait
// for a map to complete.
type Fence struct {
	done chan struct{}
	err  error
}

// Wait blocks until the fence is signaled, polling the device so the
// callback actually fires.
func (f *Fence) Wait(d *Device) error {
	for {
		d.Device.Poll(false, nil)
		select {
		case <-f.done:
			return f.err
		default:
		}
	}
}

// Submit transitions RECORDED -> SUBMITTED. If fence is non-nil, its
// channel is closed when the queue reports the submission complete.
func (c *Command) Submit(fence *Fence) error {
	if c.state != CommandRecorded {
		return wrapGPUError("gpubackend.Command.Submit", fmt.Errorf("%s: cannot submit from state %s", c.Name, c.state))
	}
	c.d.Queue.Submit(c.buffer)
	c.state = CommandSubmitted
	if fence != nil {
		c.d.Queue.OnSubmittedWorkDone(func() { close(fence.done) })
	}
	return nil
}

// State reports the command buffer's current lifecycle state.
func (c *Command) State() CommandState { return c.state }

// Immediate begins a one-shot command buffer, runs record against its
// encoder, ends, submits, waits for completion via a fence, and
// discards the buffer — spec.md §4.5's "an 'immediate' helper begins
// a one-shot buffer, records one operation, ends, submits,
// waits-idle, and destroys."
func (d *Device) Immediate(name string, record func(enc *wgpu.CommandEncoder) error) error {
	cmd := d.NewCommand(name)
	if err := cmd.Begin(); err != nil {
		return err
	}
	enc, err := cmd.Encoder()
	if err != nil {
		return err
	}
	if err := record(enc); err != nil {
		return wrapGPUError("gpubackend.Immediate", err)
	}
	if err := cmd.End(); err != nil {
		return err
	}
	fence := &Fence{done: make(chan struct{})}
	if err := cmd.Submit(fence); err != nil {
		return err
	}
	return fence.Wait(d)
}
