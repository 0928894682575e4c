package bridge

// fifo is a circular byte buffer. One slot stays free to tell full from
// empty, so a fifo of size n holds n-1 bytes. Not safe for concurrent use.
type fifo struct {
	buf   []byte
	read  int
	write int
}

func newFifo(size int) *fifo {
	return &fifo{buf: make([]byte, size)}
}

// push appends as much of data as fits and returns the count.
func (f *fifo) push(data []byte) int {
	n := 0
	for _, b := range data {
		next := (f.write + 1) % len(f.buf)
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		n++
	}
	return n
}

// pop removes one byte; ok is false when empty.
func (f *fifo) pop() (b byte, ok bool) {
	if f.read == f.write {
		return 0, false
	}
	b = f.buf[f.read]
	f.read = (f.read + 1) % len(f.buf)
	return b, true
}

// drain moves up to len(dst) bytes into dst.
func (f *fifo) drain(dst []byte) int {
	n := 0
	for n < len(dst) {
		b, ok := f.pop()
		if !ok {
			break
		}
		dst[n] = b
		n++
	}
	return n
}

func (f *fifo) available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

func (f *fifo) free() int {
	return len(f.buf) - f.available() - 1
}
