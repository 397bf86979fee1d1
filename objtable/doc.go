// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package objtable contains the object table of a simulated device.

A [*Table] is built for a single device from its object configuration
using [NewTable]. The set of objects is fixed at construction; each
object has its own lock, so writes to one object are serialized and
reads always observe the last committed write, while different objects
never contend with each other.

External writes come either from the management API ([SourceAPI]) or
from the protocol engine ([SourceProtocol]). Both update the same
state. Registered observers are notified of each committed external
write while the object lock is still held, which allows the simulation
engine to pause a task before any other update can reach the object.
*/
package objtable
