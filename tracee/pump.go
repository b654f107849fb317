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

// pump is the event pump goroutine (C9), spec.md §4.5. One instance runs
// per Run for its entire life. It only ever blocks on wait(2) and on its
// own park channel - never on anything the UI thread could be holding.
func (r *Run) pump() {
	for {
		ws, err := r.sys.Wait4(r.pid)
		if err != nil || ws.Exited() || ws.Signaled() {
			select {
			case r.events <- event{kind: evExited}:
			default:
			}
			return
		}
		if !ws.Stopped() {
			continue
		}

		regs, err := r.sys.GetRegs(r.pid)
		if err != nil {
			select {
			case r.events <- event{kind: evExited}:
			default:
			}
			return
		}

		// Send then park: no new wait is issued until the controller has
		// consumed this event and told us to resume, so the controller
		// can never race ahead of the stopped state it needs to inspect.
		r.events <- event{kind: evStopped, state: DebugeeState{Regs: regs}}

		select {
		case <-r.resume:
		case <-r.die:
			return
		}
	}
}
