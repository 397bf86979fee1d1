// SPDX-License-Identifier: GPL-3.0-or-later

package config

// Default returns the built-in configuration: a single generic
// HVAC controller using the default global settings.
func Default() *Simulator {
	return &Simulator{
		Global: DefaultGlobal(),
		Devices: []Device{{
			DeviceID: 1001,
			Name:     "HVAC Controller",
			Objects: []Object{
				analogIn(1, "Zone Temp", "degreesCelsius", 72.5),
				analogIn(2, "Supply Air Temp", "degreesCelsius", 55.0),
				analogOut(1, "Zone Setpoint", "degreesCelsius", 72.0),
				binaryIn(1, "Fan Status", "Off", "On", true),
				binaryOut(1, "Fan Command", "Off", "On", false),
				analogOut(2, "Damper Position", "percent", 50.0),
				multistate(1, "Occupancy Mode", 1, "Auto", "Occupied", "Unoccupied", "Standby"),
				{
					Type:        CharacterString,
					Instance:    1,
					Name:        "Device Status",
					Value:       "Normal",
					Commandable: true,
				},
			},
		}},
	}
}
