// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package config contains the simulator configuration model.

A [*Simulator] configuration is loaded from YAML using [Load], then
overridden by environment variables using [*Simulator.ApplyEnv], and
finally checked using [*Simulator.Validate]. The priority order is
environment variables, then YAML, then built-in defaults.

When no configuration file is given, [Default] returns a single HVAC
controller device, which is what a container started without mounts runs.

Device templates ([Template]) provide predefined object lists for common
equipment. Explicit device objects replace template objects with the same
type and instance, and additional explicit objects are appended.

All validation failures wrap [simerr.ErrConfiguration].
*/
package config
