package buffer

// Buffer is a segmented append-only byte arena. Header names and values parsed out
// of the wire are stored here as slices into a single retained allocation, which
// keeps them alive for the whole exchange without copying them out of the read
// buffer one by one.
type Buffer struct {
	memory  []byte
	begin   int
	maxSize int
}

func New(initialSize, maxSize int) *Buffer {
	return &Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// Append writes data, checking whether the new amount of bytes doesn't exceed the
// limit, otherwise discarding the data and returning false.
func (b *Buffer) Append(elements []byte) (ok bool) {
	if len(b.memory)+len(elements) > b.maxSize {
		return false
	}

	b.memory = append(b.memory, elements...)
	return true
}

// AppendByte writes a single byte, checking whether it won't exceed the limit.
func (b *Buffer) AppendByte(c byte) (ok bool) {
	if len(b.memory)+1 > b.maxSize {
		return false
	}

	b.memory = append(b.memory, c)
	return true
}

// SegmentLength returns the number of bytes taken by the current segment.
func (b *Buffer) SegmentLength() int {
	return len(b.memory) - b.begin
}

// Trunc truncates the last n bytes of the current segment, guaranteeing that data
// of previous segments stays intact.
func (b *Buffer) Trunc(n int) {
	if seglen := b.SegmentLength(); n > seglen {
		n = seglen
	}

	b.memory = b.memory[:len(b.memory)-n]
}

// Discard drops the current segment.
func (b *Buffer) Discard() {
	b.memory = b.memory[:b.begin]
}

// Preview returns the current segment without completing it.
func (b *Buffer) Preview() []byte {
	return b.memory[b.begin:]
}

// Finish completes the current segment, returning its value. The returned slice
// stays valid until Clear.
func (b *Buffer) Finish() []byte {
	segment := b.memory[b.begin:]
	b.begin = len(b.memory)

	return segment
}

// Clear resets the pointers, so old values may be overridden by new ones.
func (b *Buffer) Clear() {
	b.begin = 0
	b.memory = b.memory[:0]
}
