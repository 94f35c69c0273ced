//go:build tinygo && rp2040 && !picocalc

package hal

func boardDisplay() Display { return nil }
