package process

import "runtime"

// switchTo hands the CPU to next and parks the calling process until it is
// switched back in. A zombie never comes back, so its goroutine ends here.
func (k *Kernel) switchTo(next *Process) {
	prev := k.current
	if next == prev {
		return
	}
	if prev.State == StateRunning {
		prev.setState(StateReady)
	}
	next.setState(StateRunning)
	k.current = next
	dead := prev.State == StateZombie

	next.run <- struct{}{}
	if dead {
		runtime.Goexit()
	}
	<-prev.run
}
