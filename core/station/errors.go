package station

import "errors"

// ErrNotLoaded is returned when an operation requires a loaded plate.
var ErrNotLoaded = errors.New("no plate loaded")

// ErrBusy is returned when a physical sequence is already in progress.
var ErrBusy = errors.New("station busy")

// ErrNoDoser is returned for dosing operations on a weighing-only station.
var ErrNoDoser = errors.New("no dosing capability attached")
