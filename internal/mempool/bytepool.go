package mempool

import "sync"

// Sized pools for the scratch buffers used by convolution-style pixel
// operators (sharpen, noise reduction). Each enhancement run borrows a
// scratch copy of its pixel data and returns it before the run finishes, so
// pooled slices are never shared between concurrent tasks.

var bytePools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to a multiple of 4096 to limit pool fragmentation.
func sizeClass(n int) int {
	const step = 4096
	if n <= step {
		return step
	}
	r := (n + step - 1) / step
	return r * step
}

// GetBytes retrieves a []uint8 buffer of at least n elements. The returned
// slice has length n. The caller must return it via PutBytes when done.
func GetBytes(n int) []uint8 {
	cls := sizeClass(n)
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]uint8, cls)[:n]
	}
	buf, ok := p.Get().([]uint8)
	if !ok || cap(buf) < cls {
		buf = make([]uint8, cls)
	}
	return buf[:n]
}

// PutBytes returns a buffer to the pool. Passing nil is a no-op.
func PutBytes(buf []uint8) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	if p, ok := pAny.(*sync.Pool); ok {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck
	}
}
