//go:build !(tinygo && bootdebug)

package app

import "alkyn/hal"

func bootScreen(hal.HAL, string) {}
