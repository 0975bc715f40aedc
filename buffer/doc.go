// Package buffer provides the circular byte buffer that sits between the network
// loops and the audio device loops of a call, plus two small reassembly state
// machines layered on top of it.
//
// A [Ring] never blocks. Writes grow the buffer by doubling instead of dropping
// data; reads return whatever is available, possibly nothing:
//
//	r := buffer.NewRing(0)
//	r.Write(frame)
//	if r.Available() >= limits.FrameSize {
//	    pcm := r.Next(limits.FrameSize)
//	}
//
// [MessageAssembler] rebuilds chat messages from frame-sized chunks and
// [SizedAssembler] accumulates a payload of known length such as a file.
package buffer
