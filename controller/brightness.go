package controller

import (
	"errors"
	"fmt"
	"math"

	u "lautenbacher.net/ble2led/util"
)

var ErrInvalidVolumeSample = errors.New("invalid volume sample")

// Brightness maps a level in dB linearly onto [0,255], minDB giving 0
// and maxDB giving 255. Levels outside the range are clamped. A level
// that is not a finite number yields 0 together with
// ErrInvalidVolumeSample, which callers log and otherwise ignore.
func Brightness(db, minDB, maxDB float64) (int, error) {
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidVolumeSample, db)
	}
	if maxDB <= minDB {
		return 0, fmt.Errorf("%w: empty range [%v,%v]", ErrInvalidVolumeSample, minDB, maxDB)
	}
	db = u.Clamp(db, minDB, maxDB)
	return int((db - minDB) / (maxDB - minDB) * 255), nil
}
