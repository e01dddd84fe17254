// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package hdrhistogram

// packedStore is a sparse, trie-addressed stand-in for a logical array of
// virtualLength signed 64-bit cells. Used when most cells are expected to
// be zero: a counts array with tens of thousands of slots but a handful
// of populated latencies should not pay for a dense allocation.
//
// Each of a cell's 8 bytes lives in its own byte-set, addressed by an
// independent trie keyed on the virtual index. A byte-set's trie is a
// fixed-depth, 16-way radix tree (one 4-bit nibble of the virtual index
// per level); the last nibble selects a byte slot within the leaf node
// rather than a further pointer. Nodes are bump-allocated out of a flat
// word array that only ever grows; unpopulated reads are zero by
// construction (a missing pointer is never followed).
type packedStore struct {
	virtualLength int32
	depth         int32 // number of 4-bit nibbles needed to address virtualLength
	topShift      int32 // shift applied to extract the first (root) nibble

	words []int64 // flat backing array; words[0:packedNodeWidth] is a permanently unused sentinel block
	used  int32   // bump allocator watermark

	roots [packedByteSets]int32 // word offset of each byte-set's root node, -1 if unallocated
}

const (
	packedByteSets  = 8  // one per byte of a 64-bit logical cell
	packedNodeWidth = 16 // 4-bit nibble fan-out
)

func newPackedStore(virtualLength int32) *packedStore {
	ps := &packedStore{
		virtualLength: virtualLength,
		depth:         packedDepthFor(virtualLength),
		words:         make([]int64, packedNodeWidth*4),
	}
	ps.topShift = 4 * (ps.depth - 1)
	ps.used = packedNodeWidth // reserve a sentinel block so offset 0 means "unallocated"
	for i := range ps.roots {
		ps.roots[i] = -1
	}
	return ps
}

// packedDepthFor returns the number of nibble levels needed so that
// packedNodeWidth^depth can address every virtual index in [0, length).
func packedDepthFor(length int32) int32 {
	depth := int32(1)
	capacity := int32(packedNodeWidth)
	for capacity < length {
		capacity *= packedNodeWidth
		depth++
	}
	return depth
}

// allocateNode bump-allocates a packedNodeWidth-word node, signaling a
// resize when the physical backing array is exhausted.
func (ps *packedStore) allocateNode() (int32, *resizeSignal) {
	if ps.used+packedNodeWidth > int32(len(ps.words)) {
		return 0, &resizeSignal{newSize: int(ps.used) + packedNodeWidth}
	}
	offset := ps.used
	ps.used += packedNodeWidth
	return offset, nil
}

// growPhysical doubles the physical word array (or grows to demanded,
// whichever is larger). Growth is strictly append-only: every previously
// issued physical index remains valid, so growth never requires a retry
// from scratch, only a retry of the allocation that just failed.
func (ps *packedStore) growPhysical(demanded int) {
	newLen := len(ps.words) * 2
	if newLen < demanded {
		newLen = demanded
	}
	grown := make([]int64, newLen)
	copy(grown, ps.words)
	ps.words = grown
}

// packedIndex descends byte-set setNumber's trie to the physical word
// index holding virtualIndex's byte, allocating nodes along the way when
// insertIfMissing is set. Returns -1 when the slot is unpopulated and
// insertIfMissing is false.
func (ps *packedStore) packedIndex(setNumber int, virtualIndex int32, insertIfMissing bool) (int32, *resizeSignal) {
	nodeOffset := ps.roots[setNumber]
	if nodeOffset == -1 {
		if !insertIfMissing {
			return -1, nil
		}
		off, sig := ps.allocateNode()
		if sig != nil {
			return -1, sig
		}
		ps.roots[setNumber] = off // link last: the root becomes visible only once fully allocated
		nodeOffset = off
	}

	shift := ps.topShift
	for level := int32(0); level < ps.depth-1; level++ {
		nibble := (virtualIndex >> uint(shift)) & 0xF
		childSlot := nodeOffset + nibble
		child := ps.words[childSlot]
		if child == 0 {
			if !insertIfMissing {
				return -1, nil
			}
			off, sig := ps.allocateNode()
			if sig != nil {
				return -1, sig
			}
			ps.words[childSlot] = int64(off) // link last
			nodeOffset = off
		} else {
			nodeOffset = int32(child)
		}
		shift -= 4
	}

	finalNibble := virtualIndex & 0xF
	return nodeOffset + finalNibble, nil
}

// packedIndexRetrying is the single driver that catches a resizeSignal
// from packedIndex, grows the backing array, and retries — the only
// place PackedStore's internal Resize(newSize) signal is ever handled.
func (ps *packedStore) packedIndexRetrying(setNumber int, virtualIndex int32, insertIfMissing bool) int32 {
	for {
		idx, sig := ps.packedIndex(setNumber, virtualIndex, insertIfMissing)
		if sig == nil {
			return idx
		}
		ps.growPhysical(sig.newSize)
	}
}

func (ps *packedStore) get(index int32) int64 {
	var value int64
	for b := 0; b < packedByteSets; b++ {
		physIdx := ps.packedIndexRetrying(b, index, false)
		if physIdx == -1 {
			continue
		}
		value |= ps.words[physIdx] << uint(8*b)
	}
	return value
}

// addAtByteIndex adds delta (a single byte, 0..255) to the byte stored at
// physIdx and returns the raw (possibly >255) post-add value so the
// caller can derive a carry into the next byte-set.
func (ps *packedStore) addAtByteIndex(physIdx int32, delta int64) int64 {
	post := ps.words[physIdx] + delta
	ps.words[physIdx] = post & 0xFF
	return post
}

func (ps *packedStore) add(index int32, delta int64) int64 {
	remaining := delta
	for b := 0; b < packedByteSets && remaining != 0; b++ {
		byteDelta := remaining & 0xFF
		physIdx := ps.packedIndexRetrying(b, index, true)
		post := ps.addAtByteIndex(physIdx, byteDelta)
		carry := post >> 8
		remaining = (remaining >> 8) + carry
	}
	return ps.get(index)
}

func (ps *packedStore) increment(index int32) int64 {
	return ps.add(index, 1)
}

// set overwrites the logical cell at index with value, byte by byte.
// A zero byte that has no existing physical slot is skipped rather than
// allocated, since an unpopulated slot already reads as zero.
func (ps *packedStore) set(index int32, value int64) {
	for b := 0; b < packedByteSets; b++ {
		byteVal := (value >> uint(8*b)) & 0xFF
		physIdx := ps.packedIndexRetrying(b, index, byteVal != 0)
		if physIdx == -1 {
			continue
		}
		ps.words[physIdx] = byteVal
	}
}

func (ps *packedStore) clear() {
	ps.words = make([]int64, packedNodeWidth*4)
	ps.used = packedNodeWidth
	for i := range ps.roots {
		ps.roots[i] = -1
	}
}

func (ps *packedStore) length() int32 { return ps.virtualLength }

// resize grows the logical length a PackedStore addresses. If the new
// length still fits inside the current trie depth, only the recorded
// length changes. Otherwise every byte-set's trie is deepened by adding
// wrapper root nodes above the old roots at nibble 0, so every existing
// populated path stays reachable unchanged.
func (ps *packedStore) resize(newLength int32) countsStore {
	newDepth := packedDepthFor(newLength)
	for newDepth > ps.depth {
		for b := 0; b < packedByteSets; b++ {
			if ps.roots[b] == -1 {
				continue
			}
			wrapper, sig := ps.allocateNode()
			if sig != nil {
				ps.growPhysical(sig.newSize)
				wrapper, _ = ps.allocateNode()
			}
			ps.words[wrapper+0] = int64(ps.roots[b])
			ps.roots[b] = wrapper
		}
		ps.depth++
		ps.topShift += 4
	}
	ps.virtualLength = newLength
	return ps
}
