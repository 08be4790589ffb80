// Package register registers all drivers.
package register

import (
	// register drivers.
	_ "go.viam.com/machina/driver/fake"
	_ "go.viam.com/machina/driver/gcode"
)
