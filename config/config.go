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
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the hdrstat CLI.
type Config struct {
	Histogram HistogramConfig `mapstructure:"histogram"`
}

// HistogramConfig controls the layout of histograms the CLI builds.
type HistogramConfig struct {
	LowestDiscernibleValue uint64  `mapstructure:"lowestDiscernibleValue"`
	HighestTrackableValue  uint64  `mapstructure:"highestTrackableValue"`
	SignificantDigits      int     `mapstructure:"significantDigits"`
	AutoResize             bool    `mapstructure:"autoResize"`
	Storage                string  `mapstructure:"storage"` // dense32, dense64, packed
	ExpectedIntervalMillis int64   `mapstructure:"expectedIntervalMillis"`
	ValueScale             float64 `mapstructure:"valueScale"`
}

// DefaultHistogramConfig matches the hdrhistogram constructor defaults.
func DefaultHistogramConfig() HistogramConfig {
	return HistogramConfig{
		LowestDiscernibleValue: 1,
		HighestTrackableValue:  1<<53 - 1,
		SignificantDigits:      3,
		AutoResize:             false,
		Storage:                "dense64",
		ExpectedIntervalMillis: 0,
		ValueScale:             1,
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "HDRSTAT" and the dot character
// in keys is replaced by an underscore. For example, "histogram.storage"
// becomes "HDRSTAT_HISTOGRAM_STORAGE".
func Load() (*Config, error) {
	cfg := &Config{
		Histogram: DefaultHistogramConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("HDRSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
