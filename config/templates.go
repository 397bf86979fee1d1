// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// templates maps template names to functions building fresh object
// lists, so callers never share slices with each other.
var templates = map[string]func() []Object{
	"ahu": func() []Object {
		return []Object{
			analogIn(1, "Supply Air Temp", "degreesFahrenheit", 55.0),
			analogIn(2, "Return Air Temp", "degreesFahrenheit", 72.0),
			analogIn(3, "Mixed Air Temp", "degreesFahrenheit", 62.0),
			analogIn(4, "Outside Air Temp", "degreesFahrenheit", 85.0),
			analogIn(5, "Supply Air Pressure", "inchesOfWater", 1.5),
			analogIn(6, "Filter Differential Pressure", "inchesOfWater", 0.8),
			analogOut(1, "Supply Air Temp Setpoint", "degreesFahrenheit", 55.0),
			analogOut(2, "Cooling Valve Position", "percent", 0.0),
			analogOut(3, "Heating Valve Position", "percent", 0.0),
			analogOut(4, "Outside Air Damper Position", "percent", 20.0),
			binaryIn(1, "Supply Fan Status", "Off", "On", true),
			binaryIn(2, "Return Fan Status", "Off", "On", true),
			binaryIn(3, "Filter Alarm", "Normal", "Dirty", false),
			binaryOut(1, "Supply Fan Command", "Off", "On", true),
			binaryOut(2, "Return Fan Command", "Off", "On", true),
			multistate(1, "Operating Mode", 2, "Off", "Auto", "Heating", "Cooling", "Economizer"),
			multistate(2, "Occupancy Mode", 1, "Auto", "Occupied", "Unoccupied", "Standby"),
		}
	},

	"vav": func() []Object {
		return []Object{
			analogIn(1, "Zone Temp", "degreesFahrenheit", 72.0),
			analogIn(2, "Discharge Air Temp", "degreesFahrenheit", 55.0),
			analogIn(3, "Airflow", "cubicFeetPerMinute", 400.0),
			analogOut(1, "Cooling Setpoint", "degreesFahrenheit", 75.0),
			analogOut(2, "Heating Setpoint", "degreesFahrenheit", 70.0),
			analogOut(3, "Damper Position", "percent", 50.0),
			analogOut(4, "Reheat Valve Position", "percent", 0.0),
			binaryIn(1, "Occupancy Sensor", "Unoccupied", "Occupied", true),
			binaryOut(1, "Reheat Enable", "Disabled", "Enabled", false),
			multistate(1, "Operating Mode", 1, "Off", "Cooling", "Heating", "Deadband"),
		}
	},

	"boiler": func() []Object {
		return []Object{
			analogIn(1, "Supply Water Temp", "degreesFahrenheit", 160.0),
			analogIn(2, "Return Water Temp", "degreesFahrenheit", 140.0),
			analogIn(3, "Flue Gas Temp", "degreesFahrenheit", 350.0),
			analogIn(4, "Water Pressure", "poundsForcePerSquareInch", 25.0),
			analogIn(5, "Firing Rate", "percent", 65.0),
			analogOut(1, "Supply Water Temp Setpoint", "degreesFahrenheit", 160.0),
			analogOut(2, "Firing Rate Setpoint", "percent", 65.0),
			binaryIn(1, "Burner Status", "Off", "Firing", true),
			binaryIn(2, "Low Water Alarm", "Normal", "Low Water", false),
			binaryIn(3, "High Limit Alarm", "Normal", "High Limit", false),
			binaryIn(4, "Pump Status", "Off", "On", true),
			binaryOut(1, "Boiler Enable", "Disabled", "Enabled", true),
			binaryOut(2, "Pump Command", "Off", "On", true),
			multistate(1, "Operating Mode", 5, "Off", "Standby", "Low Fire", "High Fire", "Modulating"),
		}
	},

	"meter": func() []Object {
		return []Object{
			analogIn(1, "Power", "kilowatts", 125.0),
			analogIn(2, "Energy", "kilowattHours", 45230.0),
			analogIn(3, "Voltage", "volts", 480.0),
			analogIn(4, "Current", "amperes", 150.5),
			analogIn(5, "Power Factor", "noUnits", 0.95),
			analogIn(6, "Frequency", "hertz", 60.0),
			analogIn(7, "Demand", "kilowatts", 130.0),
			analogIn(8, "Peak Demand", "kilowatts", 210.0),
			binaryIn(1, "Communication Status", "Offline", "Online", true),
			binaryIn(2, "Over Current Alarm", "Normal", "Alarm", false),
			multistate(1, "Metering Mode", 1, "Normal", "Test", "Calibration"),
		}
	},
}

// TemplateNames returns the sorted template names.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Template returns a fresh copy of the objects of the named template.
func Template(name string) ([]Object, error) {
	build, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %q: available templates: %s",
			simerr.ErrConfiguration, name, strings.Join(TemplateNames(), ", "))
	}
	return build(), nil
}

// ExpandTemplate merges the device template objects with the explicit
// objects. An explicit object replaces the template object with the same
// type and instance; other explicit objects are appended in order. The
// template field is left untouched so expansion is idempotent.
func (d *Device) ExpandTemplate() error {
	if d.Template == "" {
		return nil
	}
	merged, err := Template(d.Template)
	if err != nil {
		return fmt.Errorf("device %d: %w", d.DeviceID, err)
	}
	for _, obj := range d.Objects {
		idx := slices.IndexFunc(merged, func(candidate Object) bool {
			return candidate.Type == obj.Type && candidate.Instance == obj.Instance
		})
		if idx >= 0 {
			merged[idx] = obj
			continue
		}
		merged = append(merged, obj)
	}
	d.Objects = merged
	return nil
}

func analogIn(instance uint32, name, unit string, value float64) Object {
	return Object{Type: AnalogInput, Instance: instance, Name: name, Unit: unit, Value: value}
}

func analogOut(instance uint32, name, unit string, value float64) Object {
	return Object{Type: AnalogOutput, Instance: instance, Name: name, Unit: unit, Value: value, Commandable: true}
}

func binaryIn(instance uint32, name, inactive, active string, value bool) Object {
	return Object{Type: BinaryInput, Instance: instance, Name: name,
		InactiveText: inactive, ActiveText: active, Value: value}
}

func binaryOut(instance uint32, name, inactive, active string, value bool) Object {
	return Object{Type: BinaryOutput, Instance: instance, Name: name,
		InactiveText: inactive, ActiveText: active, Value: value, Commandable: true}
}

func multistate(instance uint32, name string, value uint32, states ...string) Object {
	return Object{Type: MultistateValue, Instance: instance, Name: name,
		States: states, Value: value, Commandable: true}
}
