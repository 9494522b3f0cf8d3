package buffer

import "gonum.org/v1/gonum/stat"

// CircularFloat is a circular buffer of float64 values with the ability to
// iterate over the first and second halves of the values collected in the
// order that they were appended.
type CircularFloat struct {
	buffer    []float64 // actual storage
	pos       int       // Current position in buffer
	BufSize   int       // BufSize is the fixed number of values maintained in memory
	Count     int       // Count is the number of values in memory. Will always be <= BufSize
	TotalSeen int64     // TotalSeen is the total number of times Add has been called
}

// NewCircularFloat creates a new circular buffer of totalSize. If totalSize is
// not a multiple of 2, it will be adjusted down. Sizes below 2 become 2.
func NewCircularFloat(totalSize int) *CircularFloat {
	half := totalSize / 2
	if half < 1 {
		half = 1
	}
	total := half + half

	return &CircularFloat{
		buffer:  make([]float64, total),
		pos:     0,
		BufSize: total,
		Count:   0,
	}
}

// Internal: return the next array position
func (c *CircularFloat) nextPos() int {
	return (c.pos + 1) % c.BufSize
}

// Add appends the given value to the buffer, overwriting the oldest entry
func (c *CircularFloat) Add(f float64) {
	c.TotalSeen++

	c.buffer[c.pos] = f
	c.pos = c.nextPos()

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize // max out
	}
}

// Full is true once BufSize values have been added
func (c *CircularFloat) Full() bool {
	return c.Count >= c.BufSize
}

// Mean of the values currently held (0 when empty)
func (c *CircularFloat) Mean() float64 {
	if c.Count < 1 {
		return 0
	}
	return stat.Mean(c.Values(), nil)
}

// Values returns a copy of the held values, oldest first
func (c *CircularFloat) Values() []float64 {
	out := make([]float64, 0, c.Count)
	start := 0
	if c.Full() {
		start = c.pos
	}
	for i := 0; i < c.Count; i++ {
		out = append(out, c.buffer[(start+i)%c.BufSize])
	}
	return out
}

// FirstHalf returns an iterator over the first (oldest) half of the stored
// values. Will not return a valid iterator until Add has been called at least
// BufSize times
func (c *CircularFloat) FirstHalf() *CircularFloatIterator {
	if c.Count < c.BufSize {
		return nil
	}

	return &CircularFloatIterator{
		buf:    c,
		curr:   c.pos, // Oldest is the one we're about to write
		remain: c.BufSize / 2,
	}
}

// SecondHalf returns an iterator over the second (most recent) half of the
// stored values. Will not return a valid iterator until Add has been called at
// least BufSize times
func (c *CircularFloat) SecondHalf() *CircularFloatIterator {
	if c.Count < c.BufSize {
		return nil
	}

	half := c.BufSize / 2
	pos := (c.pos + half) % c.BufSize

	return &CircularFloatIterator{
		buf:    c,
		curr:   pos,
		remain: half,
	}
}

// CircularFloatIterator provides an iterator over a CircularFloat buffer
type CircularFloatIterator struct {
	buf    *CircularFloat
	curr   int
	remain int
}

// Next returns True when there are more values to read via Value
func (i *CircularFloatIterator) Next() bool {
	return i.remain > 0
}

// Value return the next value to be read. Should only be called if Next() is
// True
func (i *CircularFloatIterator) Value() float64 {
	v := i.buf.buffer[i.curr]
	i.curr = (i.curr + 1) % i.buf.BufSize
	i.remain--
	return v
}

// Collect drains the iterator into a slice
func (i *CircularFloatIterator) Collect() []float64 {
	out := make([]float64, 0, i.remain)
	for i.Next() {
		out = append(out, i.Value())
	}
	return out
}
