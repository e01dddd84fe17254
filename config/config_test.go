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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), cfg.Histogram.LowestDiscernibleValue)
	assert.Equal(t, uint64(1<<53-1), cfg.Histogram.HighestTrackableValue)
	assert.Equal(t, 3, cfg.Histogram.SignificantDigits)
	assert.Equal(t, "dense64", cfg.Histogram.Storage)
	assert.False(t, cfg.Histogram.AutoResize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HDRSTAT_HISTOGRAM_STORAGE", "packed")
	t.Setenv("HDRSTAT_HISTOGRAM_SIGNIFICANTDIGITS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "packed", cfg.Histogram.Storage)
	assert.Equal(t, 5, cfg.Histogram.SignificantDigits)
}
