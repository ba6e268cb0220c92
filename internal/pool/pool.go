// Package pool implements a page-chained bump allocator for short-lived
// byte buffers.
//
// A Pool hands out slices carved from large pages and never frees them
// individually; Clear drops every page at once. Requests larger than the
// configured page size get a dedicated page sized exactly to the request.
package pool

import (
	"math"
	"os"
	"unsafe"
)

const (
	ptrSize          = int(unsafe.Sizeof(uintptr(0)))
	fallbackPageSize = 4096

	// maxAlloc bounds a single allocation; larger requests yield nil.
	maxAlloc = math.MaxInt32
)

// pageOverhead is what the system page loses to bookkeeping so that a page
// header plus its data fit one system page.
const pageOverhead = 2*ptrSize + int(unsafe.Sizeof(page{}))

// defaultPageSize is resolved once when the process starts.
var defaultPageSize = probePageSize(os.Getpagesize())

func probePageSize(system int) int {
	if system <= pageOverhead {
		system = fallbackPageSize
	}
	return system - pageOverhead
}

// PageSize returns the process-wide default page size used by New.
func PageSize() int {
	return defaultPageSize
}

type page struct {
	data  []byte
	avail int
}

func (pg *page) alloc(size int) []byte {
	if pg.avail < size {
		return nil
	}
	off := len(pg.data) - pg.avail
	pg.avail -= size
	return pg.data[off : off+size : off+size]
}

func (pg *page) contains(addr uintptr) bool {
	if len(pg.data) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(pg.data)))
	return addr >= start && addr < start+uintptr(len(pg.data))
}

// Pool is a region allocator. The zero value is not usable; call New.
//
// A Pool is not safe for concurrent use.
type Pool struct {
	pages    []*page // newest last; only the newest page is allocated from
	itemSize int
	pageSize int
}

// New returns an empty pool using the process-wide page size. An itemSize of 1
// makes a variable size pool where Alloc takes a byte count; larger values make
// a fixed size pool where Alloc takes an item count.
func New(itemSize int) *Pool {
	return NewWithPageSize(itemSize, defaultPageSize)
}

// NewWithPageSize is New with an explicit page size.
func NewWithPageSize(itemSize, pageSize int) *Pool {
	if itemSize < 1 {
		panic("pool: item size must be at least 1")
	}
	if pageSize < 1 {
		panic("pool: page size must be at least 1")
	}
	return &Pool{
		itemSize: itemSize,
		pageSize: pageSize,
	}
}

// ItemSize returns the configured item size.
func (p *Pool) ItemSize() int { return p.itemSize }

// PageSize returns the configured page size.
func (p *Pool) PageSize() int { return p.pageSize }

// ItemStride returns the bytes reserved per item, the item size rounded up to
// pointer alignment. Variable size pools report 1.
func (p *Pool) ItemStride() int {
	if p.itemSize == 1 {
		return 1
	}
	return alignUp(p.itemSize)
}

func alignUp(n int) int {
	align := ptrSize - 1
	return (n + align) &^ align
}

// allocSize returns the aligned number of bytes reserved for count items and
// the length of the slice handed back.
func (p *Pool) allocSize(count int) (size, length int, ok bool) {
	if count < 0 {
		return 0, 0, false
	}
	if p.itemSize > 1 {
		stride := alignUp(p.itemSize)
		if count > 0 && stride > maxAlloc/count {
			return 0, 0, false
		}
		return stride * count, stride * count, true
	}
	if count > maxAlloc-ptrSize {
		return 0, 0, false
	}
	return alignUp(count), count, true
}

func (p *Pool) allocPage(size int) *page {
	n := p.pageSize
	if size > n {
		n = size
	}
	pg := &page{data: make([]byte, n), avail: n}
	p.pages = append(p.pages, pg)
	return pg
}

func (p *Pool) alloc(size int) []byte {
	var head *page
	if len(p.pages) > 0 {
		head = p.pages[len(p.pages)-1]
	}
	if head == nil || head.avail < size {
		head = p.allocPage(size)
	}
	return head.alloc(size)
}

// Alloc reserves count items and returns their memory. Variable size pools
// return a slice of count bytes; fixed size pools return count slots of
// ItemStride bytes each. The contents are unspecified. Alloc returns nil when
// the request cannot be satisfied.
func (p *Pool) Alloc(count int) []byte {
	size, length, ok := p.allocSize(count)
	if !ok {
		return nil
	}
	b := p.alloc(size)
	if b == nil {
		return nil
	}
	return b[:length]
}

// AllocZeroed is Alloc with the returned region guaranteed to be zero.
func (p *Pool) AllocZeroed(count int) []byte {
	b := p.Alloc(count)
	if b != nil {
		clear(b[:cap(b)])
	}
	return b
}

// Clear releases every page. Slices handed out before Clear no longer belong
// to the pool.
func (p *Pool) Clear() {
	clear(p.pages)
	p.pages = nil
}

// Contains reports whether b was carved from one of the pool's open pages.
func (p *Pool) Contains(b []byte) bool {
	if cap(b) == 0 {
		return false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	for _, pg := range p.pages {
		if pg.contains(addr) {
			return true
		}
	}
	return false
}

// OpenPages returns the number of pages currently held.
func (p *Pool) OpenPages() int {
	return len(p.pages)
}
