/*
Package process implements the process lifecycle and scheduling core of a
small Unix-like kernel.

Every process but the idle process runs its Program on a goroutine of its
own, yet only one of them executes at any time: the goroutine holding the CPU
hands it to the next one at the context switch and parks until it is switched
back in. Kernel structures are only touched by the holder, so the core has no
locks. The idle process is the goroutine that calls Kernel.Run.

# Process States

  - Running: the process holds the CPU
  - Ready: runnable, waiting for the CPU
  - Interruptible: sleeping until woken or until a signal can be delivered
  - Uninterruptible: sleeping until woken
  - Stopped: suspended by a controller
  - Zombie: terminated, waiting for the parent to reap it

# Scheduling

The scheduler scans the table from the highest slot down and picks the
runnable process with the largest remaining counter. When every runnable
process has used up its slice, every counter becomes counter/2 + priority.
Time only moves through clock ticks, which a Program spends with Compute (user
mode, preemptible) or SystemWork (kernel mode).

# Usage

	k, err := process.New(cfg)
	if err != nil {
		// Handle error
	}
	err = k.Run(ctx, func(p *process.Process) {
		pid, _ := p.Fork(func(c *process.Process) {
			c.Compute(10)
			c.Exit(7)
		})
		_, status, _ := p.Wait(pid, 0)
		fmt.Println(status.ExitStatus()) // 7
	})

# Signals

Handlers and restorers are Go functions placed in the kernel text with
RegisterHandler. Delivery happens on every return to user mode: the handler
runs on the process goroutine with a SignalFrame pushed, and the restorer
unwinds the frame when the handler returns.
*/
package process
