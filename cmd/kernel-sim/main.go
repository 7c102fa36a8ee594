// kernel-sim boots the simulated kernel and runs a small workload: a shell
// session with a pipeline, a CPU bound worker woken by an alarm, two disk
// writers contending for the block device and a sleeper that gets killed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"kcore/pkg/blk"
	"kcore/pkg/config"
	"kcore/pkg/klog"
	"kcore/pkg/pipe"
	"kcore/pkg/process"
	"kcore/pkg/signal"
	"kcore/pkg/tracing"
)

func main() {
	configURL := flag.String("config", "", "YAML configuration URL (file://, mem://, ...)")
	maxTicks := flag.Int64("ticks", 0, "stop after this many clock ticks (overrides config)")
	level := flag.String("log", "", "log level (overrides config)")
	trace := flag.Bool("trace", false, "export system call spans to stdout")
	flag.Parse()

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if *configURL != "" {
		var err error
		if cfg, err = config.Load(ctx, *configURL); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *maxTicks > 0 {
		cfg.Sched.MaxTicks = *maxTicks
	}
	if cfg.Sched.MaxTicks == 0 {
		cfg.Sched.MaxTicks = 100000
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *trace {
		cfg.Trace.Enabled = true
	}
	if err := klog.Setup(os.Stderr, cfg.Log.Level); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	k, err := process.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create kernel: %v", err)
	}
	if cfg.Trace.Enabled {
		if err := tracing.Init("kernel-sim", k.BootID(), cfg.Trace.Output); err != nil {
			log.Fatalf("Failed to set up tracing: %v", err)
		}
		defer tracing.Shutdown(context.Background())
	}

	fmt.Printf("=== kernel-sim boot %s ===\n", k.BootID())
	dev := blk.New(k, 64)
	w := &workload{k: k, dev: dev}
	if err := k.Run(ctx, w.init); err != nil {
		fmt.Printf("Run stopped: %v\n", err)
	}

	fmt.Printf("\n--- Final process table at tick %d ---\n", k.Jiffies())
	for _, info := range k.Snapshot() {
		fmt.Printf("slot %2d pid %3d ppid %3d pgrp %3d %-16v utime %5d stime %5d\n",
			info.Slot, info.PID, info.Father, info.Pgrp, info.State, info.UTime, info.STime)
	}
	k.ShowStat()
	stats := dev.Stats()
	fmt.Printf("block device: %d reads, %d writes, %d waits\n", stats.Reads, stats.Writes, stats.Waits)
}

type workload struct {
	k   *process.Kernel
	dev *blk.Device
}

func (w *workload) init(p *process.Process) {
	p.Setsid()
	if _, err := p.OpenTTY(0); err != nil {
		fmt.Printf("init: open tty0: %v\n", err)
	}

	w.spawn(p, "shell", w.shell)
	w.spawn(p, "cruncher", w.cruncher)
	for i := 0; i < 2; i++ {
		block := i
		w.spawn(p, fmt.Sprintf("disk%d", i), func(c *process.Process) {
			w.disk(c, block)
		})
	}
	sleeper := w.spawn(p, "sleeper", func(c *process.Process) {
		for {
			c.Pause()
		}
	})

	p.Compute(20)
	if err := p.Kill(sleeper, signal.SIGTERM); err != nil {
		fmt.Printf("init: kill %d: %v\n", sleeper, err)
	}

	for {
		pid, status, err := p.Wait(-1, 0)
		if err != nil {
			break
		}
		switch {
		case status.Exited():
			fmt.Printf("init: pid %d exited with %d\n", pid, status.ExitStatus())
		case status.Signaled():
			fmt.Printf("init: pid %d killed by %v\n", pid, status.Signal())
		}
	}
}

func (w *workload) spawn(p *process.Process, name string, prog process.Program) int {
	pid, err := p.Fork(prog)
	if err != nil {
		fmt.Printf("init: fork %s: %v\n", name, err)
		return 0
	}
	fmt.Printf("init: started %s as pid %d\n", name, pid)
	return pid
}

// shell runs "producer | consumer" in its own process group. Each child
// takes its own reference on both pipe ends and drops the one it does not use.
func (w *workload) shell(sh *process.Process) {
	sh.Setpgid(0, 0)
	pp := pipe.New()
	pp.DupReader()
	pp.DupWriter()
	producer, _ := sh.Fork(func(c *process.Process) {
		pp.CloseReader()
		for i := 0; i < 5; i++ {
			c.Compute(3)
			pp.Write(c, []byte(fmt.Sprintf("line %d\n", i)))
		}
		pp.CloseWriter()
	})
	pp.DupReader()
	pp.DupWriter()
	consumer, _ := sh.Fork(func(c *process.Process) {
		pp.CloseWriter()
		buf := make([]byte, 64)
		total := 0
		for {
			n, err := pp.Read(c, buf)
			if err != nil || n == 0 {
				break
			}
			total += n
		}
		c.Exit(total & 0xff)
	})
	pp.CloseReader()
	pp.CloseWriter()
	sh.Wait(producer, 0)
	_, status, _ := sh.Wait(consumer, 0)
	fmt.Printf("shell: consumer read %d bytes\n", status.ExitStatus())
}

// cruncher computes until its alarm goes off.
func (w *workload) cruncher(c *process.Process) {
	done := false
	h := w.k.RegisterHandler(func(p *process.Process, sig signal.Signal) { done = true })
	c.Signal(signal.SIGALRM, h, 0)
	c.Nice(5)
	c.Alarm(1)
	for !done {
		c.Compute(10)
	}
	c.Exit(int(c.UTime % 256))
}

func (w *workload) disk(c *process.Process, block int) {
	data := make([]byte, blk.BlockSize)
	for i := range data {
		data[i] = byte(block)
	}
	if err := w.dev.Write(c, block, data); err != nil {
		c.Exit(1)
	}
	got, err := w.dev.Read(c, block)
	if err != nil || got[0] != byte(block) {
		c.Exit(2)
	}
}
