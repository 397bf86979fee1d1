// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package impair injects network impairment into device responses.

A [Profile] describes a delay range and a drop probability. The
[*Impairer] owns the current profile of one device together with a
private random stream, and decides for each outbound response whether
to drop it and, otherwise, how long to delay it.

[*PacketConn] wraps the outbound [net.PacketConn] of a protocol engine
so that every response written through it is impaired. Dropped responses
are discarded without reporting an error to the engine: the remote peer
observes a timeout, as on a real lossy link.

Changing the profile using [*Impairer.SetProfile] only affects the
responses for which a decision has not been taken yet.
*/
package impair
