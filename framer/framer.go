// Package framer turns an incrementally-arriving byte stream into a
// sequence of complete RPC message buffers, without blocking and without
// buffering more than necessary.
//
// Two implementations share one Framer interface: PackedFramer drives a
// streaming MessagePack unpacker; JSONFramer tracks bracket depth and
// string-escaping to find the boundary of each JSON value.
package framer

// Framer incrementally consumes bytes and yields complete message buffers.
// The read loop that owns a Framer follows this protocol:
//
//	buf := f.Reserve(n)       // get a scratch region of at least n bytes
//	nRead, _ := conn.Read(buf)
//	f.Consumed(nRead)         // tell the framer how much of buf was filled
//	for {
//	    msg, ok, err := f.Next()
//	    if err != nil { /* malformed input: close the session */ }
//	    if !ok { break }
//	    // dispatch msg
//	}
type Framer interface {
	// Reserve returns a byte slice of at least n bytes that the caller may
	// write into (e.g. via a Read call), growing the internal buffer if
	// needed.
	Reserve(n int) []byte
	// Consumed tells the framer that the first n bytes of the slice
	// returned by the most recent Reserve now hold valid data.
	Consumed(n int)
	// Next returns the next complete message buffer, if one is fully
	// buffered. Partial trailing bytes remain buffered for the next call.
	// ok is false when no complete message is currently available; err is
	// non-nil only on malformed input, which is always fatal to the
	// session using this framer.
	Next() (buf []byte, ok bool, err error)
}
