//go:build tinygo

package main

import (
	"alkyn/app"
	"alkyn/hal"
)

func main() {
	app.Run(hal.New())
}
