// This file is part of dbgcore.
//
// dbgcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dbgcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dbgcore.  If not, see <https://www.gnu.org/licenses/>.

package tracee

import (
	"golang.org/x/sys/unix"
)

// waitStatus is the sliver of unix.WaitStatus pollState/the pump care
// about. Defined as an interface so tests can script wait events without a
// real child process.
type waitStatus interface {
	Exited() bool
	Signaled() bool
	Stopped() bool
	StopSignal() unix.Signal
	ExitStatus() int
}

// ptraceSyscalls is every ptrace/process primitive the controller and
// event pump need. The production implementation (unixSyscalls) is a thin
// wrapper over golang.org/x/sys/unix; tests substitute a scripted fake so
// the state machine can be exercised without spawning and tracing a real
// child process.
type ptraceSyscalls interface {
	ForkExec(path string, argv []string) (pid int, err error)
	Wait4(pid int) (waitStatus, error)
	GetRegs(pid int) (unix.PtraceRegs, error)
	SetRegs(pid int, regs *unix.PtraceRegs) error
	PeekData(pid int, addr uintptr, out []byte) (int, error)
	PokeData(pid int, addr uintptr, data []byte) (int, error)
	Cont(pid int, signal int) error
	SingleStep(pid int) error
	Kill(pid int) error
}

// unixSyscalls is the real, Linux-only implementation backed by
// golang.org/x/sys/unix.
type unixSyscalls struct{}

func (unixSyscalls) ForkExec(path string, argv []string) (int, error) {
	return unix.ForkExec(path, argv, &unix.ProcAttr{
		Sys: &unix.SysProcAttr{Ptrace: true, Setpgid: true},
	})
}

func (unixSyscalls) Wait4(pid int) (waitStatus, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (unixSyscalls) GetRegs(pid int) (unix.PtraceRegs, error) {
	var regs unix.PtraceRegs
	err := unix.PtraceGetRegs(pid, &regs)
	return regs, err
}

func (unixSyscalls) SetRegs(pid int, regs *unix.PtraceRegs) error {
	return unix.PtraceSetRegs(pid, regs)
}

func (unixSyscalls) PeekData(pid int, addr uintptr, out []byte) (int, error) {
	return unix.PtracePeekData(pid, addr, out)
}

func (unixSyscalls) PokeData(pid int, addr uintptr, data []byte) (int, error) {
	return unix.PtracePokeData(pid, addr, data)
}

func (unixSyscalls) Cont(pid int, signal int) error {
	return unix.PtraceCont(pid, signal)
}

func (unixSyscalls) SingleStep(pid int) error {
	return unix.PtraceSingleStep(pid)
}

func (unixSyscalls) Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
