package mqtt

import log "github.com/sirupsen/logrus"

// bufferedMsg is a serialized message waiting for a connection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO of messages held while disconnected.
// When full the oldest message is overwritten.
// Not safe for concurrent use; the publisher's mutex guards it.
type ringBuffer struct {
	buf      []bufferedMsg
	head     int // next write position
	count    int
	overflow bool
	dropped  int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	capacity := len(r.buf)
	if r.count == capacity {
		if !r.overflow {
			log.Warnf("mqtt: buffer full (%d messages), dropping oldest", capacity)
			r.overflow = true
		}
		r.dropped++
		r.buf[r.head] = msg
		r.head = (r.head + 1) % capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
	r.count++
}

// drainAll removes and returns every message, oldest first.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	out := make([]bufferedMsg, r.count)
	start := (r.head - r.count + capacity) % capacity
	for i := range out {
		out[i] = r.buf[(start+i)%capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
