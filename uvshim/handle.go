// Package uvshim is a drop-in reimplementation of libuv's handle and
// request surface — timers, idle/prepare/check handles, and TCP
// streams/listeners — built on top of Go's network poller instead of
// libuv's own epoll/kqueue/IOCP backend. It preserves libuv's handle
// lifecycle, active/ref flags, write-queue ordering and read
// backpressure semantics so that code written against the libuv ABI
// (typically an embedded protocol implementation) observes the same
// callback contracts.
//
// The shim does not multiplex real OS signals, UDP, pipes, TTY or
// process handles — only the categories enumerated by HandleType.
package uvshim

// HandleType tags which concrete handle kind a Handle is, mirroring
// libuv's uv_handle_type enum values for the categories this shim
// supports.
type HandleType int

const (
	UnknownHandle HandleType = iota
	TimerHandle
	IdleHandle
	PrepareHandle
	CheckHandle
	TCPHandle
)

// Flag bits, independent of each other.
const (
	flagActive uint32 = 1 << iota
	flagRef
	flagClosing
)

// Handle is the common header every concrete handle type embeds, in
// the same relative position libuv's structs place {type, loop, data,
// flags} — callers that need to recover a handle's type or owning
// loop from an opaque pointer can rely on this layout.
type Handle struct {
	Type  HandleType
	Loop  *Loop
	Data  interface{}
	flags uint32
}

func (h *Handle) init(t HandleType, loop *Loop) {
	h.Type = t
	h.Loop = loop
	h.Data = nil
	h.flags = flagRef
}

// IsActive reports the ACTIVE flag.
func (h *Handle) IsActive() bool { return h.flags&flagActive != 0 }

// IsClosing reports the CLOSING flag.
func (h *Handle) IsClosing() bool { return h.flags&flagClosing != 0 }

func (h *Handle) isRef() bool { return h.flags&flagRef != 0 }

// Ref marks the handle as keeping the loop alive.
func (h *Handle) Ref() { h.flags |= flagRef }

// Unref marks the handle as not keeping the loop alive on its own.
func (h *Handle) Unref() { h.flags &^= flagRef }

func (h *Handle) setActive()   { h.flags |= flagActive }
func (h *Handle) clearActive() { h.flags &^= flagActive }
func (h *Handle) setClosing()  { h.flags |= flagClosing }
