//go:build !linux && !darwin

package app

// Foreground always reports true where job control is unavailable.
func Foreground() (bool, error) { return true, nil }
