package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

var durationType = reflect.TypeOf(time.Duration(0))

// DecodeHook is the mapstructure hook for decoding a Config from viper. It
// parses durations from strings and, like Parse, rejects bare numbers,
// which would otherwise decode as nanoseconds.
//
// Example:
//
//	err := viper.Unmarshal(&cfg, viper.DecodeHook(config.DecodeHook()))
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		rejectBareDurations,
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

func rejectBareDurations(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil, fmt.Errorf("duration %v needs a unit, e.g. \"%vs\"", data, data)
	}
	return data, nil
}
