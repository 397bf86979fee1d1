// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package engine defines the protocol engine used by simulated devices.

An [Engine] serves the protocol for a single device bound to an address
and port. It is created by a [Factory] and delegates every object read and
write to the [Handler] passed in its [Config], so the device runtime owns
the object state and both access channels observe the same values.

The [Config] WrapOutbound field is the hook where network impairment
attaches: the engine writes its responses through the returned conn.

This package also contains [*UDPFactory], which creates engines speaking
a small JSON datagram protocol with read, write and who-is services, and
the matching [*Client].
*/
package engine
