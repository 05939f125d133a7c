package param

import "strings"

// pidNames maps parameter IDs to their conventional message names.
var pidNames = map[PID]string{
	PIDDiscUniqueBranch:          "DISC_UNIQUE_BRANCH",
	PIDDiscMute:                  "DISC_MUTE",
	PIDDiscUnMute:                "DISC_UN_MUTE",
	PIDCommsStatus:               "COMMS_STATUS",
	PIDQueuedMessage:             "QUEUED_MESSAGE",
	PIDStatusMessage:             "STATUS_MESSAGES",
	PIDSupportedParameters:       "SUPPORTED_PARAMETERS",
	PIDParameterDescription:      "PARAMETER_DESCRIPTION",
	PIDDeviceInfo:                "DEVICE_INFO",
	PIDDeviceModelDescription:    "DEVICE_MODEL_DESCRIPTION",
	PIDManufacturerLabel:         "MANUFACTURER_LABEL",
	PIDDeviceLabel:               "DEVICE_LABEL",
	PIDSoftwareVersionLabel:      "SOFTWARE_VERSION_LABEL",
	PIDDMXPersonality:            "DMX_PERSONALITY",
	PIDDMXPersonalityDescription: "DMX_PERSONALITY_DESCRIPTION",
	PIDDMXStartAddress:           "DMX_START_ADDRESS",
	PIDIdentifyDevice:            "IDENTIFY_DEVICE",
	PIDResetDevice:               "RESET_DEVICE",
}

// PIDName returns the conventional name of a parameter, or "" when the
// parameter has none (manufacturer-specific or unregistered).
func PIDName(pid PID) string {
	return pidNames[pid]
}

// ResolvePIDName resolves a parameter name to its ID,
// case-insensitively.
func ResolvePIDName(name string) (PID, bool) {
	lname := strings.ToLower(name)
	for pid, n := range pidNames {
		if strings.ToLower(n) == lname {
			return pid, true
		}
	}
	return 0, false
}
