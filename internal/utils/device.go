package utils

import (
	"github.com/denisbrodbeck/machineid"
)

const deviceAppID = "solvesync"

// HWID is an app-scoped, hashed machine id. Empty if the platform id is unavailable.
var HWID = deviceID()

func deviceID() string {
	id, err := machineid.ProtectedID(deviceAppID)
	if err != nil {
		return ""
	}
	return id[:16]
}
