// Package buffer provides the fixed-size circular trace buffer the chain
// monitor uses for split-half convergence checks on scalar parameters.
package buffer

// CircularFloat is a circular buffer of float64 values with the ability to
// iterate over the first and second halves of the values collected, in the
// order they were appended. The chain monitor compares the two half-window
// means to flag parameters that are still drifting.
type CircularFloat struct {
	buffer    []float64 // actual storage
	pos       int       // current position in buffer
	BufSize   int       // fixed number of values maintained in memory
	Count     int       // values currently in memory, always <= BufSize
	TotalSeen int64     // total number of times Add has been called
}

// NewCircularFloat creates a new circular buffer of totalSize. If totalSize
// is not a multiple of 2, it will be adjusted.
func NewCircularFloat(totalSize int) *CircularFloat {
	half := totalSize / 2
	total := half + half

	return &CircularFloat{
		buffer:  make([]float64, total),
		pos:     0,
		BufSize: total,
		Count:   0,
	}
}

// Add appends the given value, overwriting the oldest entry once full.
func (c *CircularFloat) Add(v float64) {
	c.TotalSeen++
	c.buffer[c.pos] = v
	c.pos = (c.pos + 1) % c.BufSize

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize
	}
}

// Full reports whether the buffer has seen at least BufSize values.
func (c *CircularFloat) Full() bool {
	return c.Count >= c.BufSize
}

// FirstHalf returns an iterator over the oldest half of the stored values,
// or nil until the buffer is full.
func (c *CircularFloat) FirstHalf() *CircularFloatIterator {
	if !c.Full() {
		return nil
	}

	return &CircularFloatIterator{
		buf:    c,
		curr:   c.pos, // oldest is the one we're about to write
		remain: c.BufSize / 2,
	}
}

// SecondHalf returns an iterator over the most recent half of the stored
// values, or nil until the buffer is full.
func (c *CircularFloat) SecondHalf() *CircularFloatIterator {
	if !c.Full() {
		return nil
	}

	half := c.BufSize / 2
	return &CircularFloatIterator{
		buf:    c,
		curr:   (c.pos + half) % c.BufSize,
		remain: half,
	}
}

// HalfMeans returns the means of the two halves. Only valid once Full.
func (c *CircularFloat) HalfMeans() (first float64, second float64) {
	half := float64(c.BufSize / 2)
	for it := c.FirstHalf(); it != nil && it.Next(); {
		first += it.Value()
	}
	for it := c.SecondHalf(); it != nil && it.Next(); {
		second += it.Value()
	}
	return first / half, second / half
}

// CircularFloatIterator iterates over one half of a CircularFloat.
type CircularFloatIterator struct {
	buf    *CircularFloat
	curr   int
	remain int
}

// Next returns true when there are more values to read via Value.
func (i *CircularFloatIterator) Next() bool {
	return i.remain > 0
}

// Value returns the next value. Should only be called if Next() is true.
func (i *CircularFloatIterator) Value() float64 {
	v := i.buf.buffer[i.curr]
	i.curr = (i.curr + 1) % i.buf.BufSize
	i.remain--
	return v
}
