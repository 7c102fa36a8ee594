package process

import (
	"fmt"

	"kcore/pkg/fs"
)

func (p *Process) freeFD() (int, error) {
	for fd, f := range p.Files {
		if f == nil {
			return fd, nil
		}
	}
	return -1, ErrTooManyFiles
}

// Install places an already referenced file in the lowest free descriptor.
func (p *Process) Install(f *fs.File) (int, error) {
	fd, err := p.freeFD()
	if err != nil {
		return -1, err
	}
	p.Files[fd] = f
	return fd, nil
}

// File returns the open file behind fd.
func (p *Process) File(fd int) (*fs.File, error) {
	if fd < 0 || fd >= len(p.Files) || p.Files[fd] == nil {
		return nil, ErrBadFile
	}
	return p.Files[fd], nil
}

// Open opens name and returns the new descriptor.
func (p *Process) Open(name string, mode int) (int, error) {
	return p.Trap("open", func() (int, error) {
		return p.open(name, mode)
	})
}

func (p *Process) open(name string, mode int) (int, error) {
	fd, err := p.freeFD()
	if err != nil {
		return -1, err
	}
	f, err := p.kernel.files.Open(name, mode)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", name, err)
	}
	p.Files[fd] = f
	return fd, nil
}

// Close releases descriptor fd.
func (p *Process) Close(fd int) error {
	_, err := p.Trap("close", func() (int, error) {
		f, err := p.File(fd)
		if err != nil {
			return 0, err
		}
		p.Files[fd] = nil
		p.kernel.files.Close(f)
		return 0, nil
	})
	return err
}

// Dup returns a new descriptor sharing the open file of fd.
func (p *Process) Dup(fd int) (int, error) {
	return p.Trap("dup", func() (int, error) {
		f, err := p.File(fd)
		if err != nil {
			return -1, err
		}
		nfd, err := p.Install(f)
		if err != nil {
			return -1, err
		}
		p.kernel.files.Dup(f)
		return nfd, nil
	})
}

// Chdir changes the working directory.
func (p *Process) Chdir(name string) error {
	_, err := p.Trap("chdir", func() (int, error) {
		i := p.kernel.files.Namei(name)
		p.kernel.files.Iput(p.Pwd)
		p.Pwd = i
		return 0, nil
	})
	return err
}

// Chroot changes the root directory. Only the superuser may do so.
func (p *Process) Chroot(name string) error {
	_, err := p.Trap("chroot", func() (int, error) {
		if !p.suser() {
			return 0, ErrPermission
		}
		i := p.kernel.files.Namei(name)
		p.kernel.files.Iput(p.Root)
		p.Root = i
		return 0, nil
	})
	return err
}

// OpenTTY opens terminal n. A session leader without a controlling
// terminal acquires it and its process group becomes the foreground group.
func (p *Process) OpenTTY(n int) (int, error) {
	return p.Trap("open", func() (int, error) {
		t, err := p.kernel.ttys.Get(n)
		if err != nil {
			return -1, fmt.Errorf("%w: %w", ErrNoDevice, err)
		}
		fd, err := p.open(fmt.Sprintf("/dev/tty%d", n), 0)
		if err != nil {
			return -1, err
		}
		if p.Leader && p.TTY < 0 {
			p.TTY = n
			t.Pgrp = p.Pgrp
		}
		return fd, nil
	})
}
