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

package debuginfo

import (
	"debug/dwarf"
	"sync"

	"github.com/tracepit/dbgcore/binload"
	"github.com/tracepit/dbgcore/dbglog"
	"github.com/tracepit/dbgcore/disasm"
	"github.com/tracepit/dbgcore/dwarfinfo"
	"github.com/tracepit/dbgcore/srcfile"
)

type request interface{ isRequest() }

type readExecReq struct{ path string }
type readSrcReq struct {
	path           string
	queueDebugInfo bool
}
type debugInfoReq struct{ file *srcfile.SourceFile }

func (readExecReq) isRequest()  {}
func (readSrcReq) isRequest()   {}
func (debugInfoReq) isRequest() {}

// Worker owns the parsed binary and an evolving view of its debug info. It
// does the DWARF parsing, disassembly and source-file reads on its own
// goroutine - the UI thread only ever reads Store.Snapshot() for those.
// Session.Open still opens the executable once on the caller's goroutine.
type Worker struct {
	store *Store

	mu    sync.Mutex
	queue []request
	wake  chan struct{}
	die   chan struct{}

	bin       *binload.Binary
	dwarfData *dwarf.Data
	text      disasm.DecompiledText
	files     map[uint64]*srcfile.SourceFile
	perFile   map[uint64]PerFile
	allSubs   []dwarfinfo.Subprogram
}

// NewWorker starts a worker goroutine bound to store.
func NewWorker(store *Store) *Worker {
	w := &Worker{
		store:   store,
		wake:    make(chan struct{}, 1),
		die:     make(chan struct{}),
		files:   make(map[uint64]*srcfile.SourceFile),
		perFile: make(map[uint64]PerFile),
	}
	go w.run()
	return w
}

// Stop terminates the worker goroutine. Idempotent.
func (w *Worker) Stop() {
	select {
	case <-w.die:
	default:
		close(w.die)
	}
}

// ReadExec enqueues a request to load and analyze the binary at path.
func (w *Worker) ReadExec(path string) { w.enqueue(readExecReq{path: path}) }

// ReadSrc enqueues a request to load and line-split a source file.
func (w *Worker) ReadSrc(path string, queueDebugInfo bool) {
	w.enqueue(readSrcReq{path: path, queueDebugInfo: queueDebugInfo})
}

func (w *Worker) enqueue(r request) {
	w.mu.Lock()
	w.queue = append(w.queue, r)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) dequeue() (request, bool) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			r := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return r, true
		}
		w.mu.Unlock()

		select {
		case <-w.die:
			return nil, false
		case <-w.wake:
		}
	}
}

func (w *Worker) run() {
	for {
		req, ok := w.dequeue()
		if !ok {
			return
		}
		switch r := req.(type) {
		case readExecReq:
			w.handleReadExec(r)
		case readSrcReq:
			w.handleReadSrc(r)
		case debugInfoReq:
			if w.dwarfData == nil {
				// readExec for this binary hasn't completed yet; keep the
				// request alive by sending it to the back of the queue
				// rather than dropping it.
				w.enqueue(r)
				continue
			}
			w.handleDebugInfo(r)
		}
	}
}

func (w *Worker) handleReadExec(r readExecReq) {
	b, err := binload.Open(r.path)
	if err != nil {
		dbglog.Log(dbglog.Allow, "debuginfo", err)
		return
	}
	w.bin = b

	d, err := b.DWARF()
	if err != nil {
		dbglog.Log(dbglog.Allow, "debuginfo", err)
		return
	}
	w.dwarfData = d

	dt, err := disasm.Decode(b.Text(), b.TextBase())
	if err != nil {
		// partial disassembly is still useful; log and keep what decoded.
		dbglog.Log(dbglog.Allow, "debuginfo", err)
	}
	w.text = dt

	w.publishSnapshot()

	for _, path := range dwarfinfo.ScanPaths(d) {
		w.enqueue(readSrcReq{path: path, queueDebugInfo: true})
	}
}

func (w *Worker) handleReadSrc(r readSrcReq) {
	f, err := srcfile.Load(r.path)
	if err != nil {
		dbglog.Log(dbglog.Allow, "debuginfo", err)
		return
	}
	w.files[f.ContentHash] = f
	w.store.send(Response{Kind: RespSrc, Src: f})

	if r.queueDebugInfo {
		w.enqueue(debugInfoReq{file: f})
	}
}

func (w *Worker) handleDebugInfo(r debugInfoReq) {
	result, err := dwarfinfo.Analyze(w.dwarfData, r.file.Path)
	if err != nil {
		dbglog.Log(dbglog.Allow, "debuginfo", err)
		return
	}

	for _, loc := range result.BreakableLocations {
		r.file.Bind(loc.Line, loc.Addr)
	}

	w.perFile[r.file.ContentHash] = PerFile{
		BreakableLocations: result.BreakableLocations,
		Subprograms:        result.Subprograms,
	}
	w.allSubs = append(w.allSubs, result.Subprograms...)

	w.store.send(Response{Kind: RespDebugInfo, Src: r.file})
	w.publishSnapshot()
}

// publishSnapshot builds a fresh, immutable Snapshot from the worker's
// current accumulated state and publishes it. A new map is allocated every
// time rather than mutating the previous snapshot's map in place, so a
// reader holding an old *Snapshot never observes a partially-updated
// PerFile table.
func (w *Worker) publishSnapshot() {
	perFile := make(map[uint64]PerFile, len(w.perFile))
	for k, v := range w.perFile {
		perFile[k] = v
	}
	subs := make([]dwarfinfo.Subprogram, len(w.allSubs))
	copy(subs, w.allSubs)

	var decompiled *disasm.DecompiledText
	if w.text.Len() > 0 {
		dt := w.text
		decompiled = &dt
	}

	w.store.publish(&Snapshot{
		Decompiled:     decompiled,
		PerFile:        perFile,
		AllSubprograms: subs,
	})
}
