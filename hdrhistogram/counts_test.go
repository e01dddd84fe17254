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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenseCounts_BasicOperations(t *testing.T) {
	for _, store := range []countsStore{newDenseCounts32(8), newDenseCounts64(8)} {
		assert.EqualValues(t, 8, store.length())
		assert.EqualValues(t, 0, store.get(3))

		assert.EqualValues(t, 1, store.increment(3))
		assert.EqualValues(t, 1, store.get(3))

		assert.EqualValues(t, 6, store.add(3, 5))
		assert.EqualValues(t, 6, store.get(3))

		store.set(3, 42)
		assert.EqualValues(t, 42, store.get(3))

		store.clear()
		assert.EqualValues(t, 0, store.get(3))
	}
}

func TestDenseCounts_ResizePreservesLowerCells(t *testing.T) {
	for _, store := range []countsStore{newDenseCounts32(4), newDenseCounts64(4)} {
		store.set(0, 10)
		store.set(3, 99)

		grown := store.resize(8)
		assert.EqualValues(t, 8, grown.length())
		assert.EqualValues(t, 10, grown.get(0))
		assert.EqualValues(t, 99, grown.get(3))
		assert.EqualValues(t, 0, grown.get(7))
	}
}
