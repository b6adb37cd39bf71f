/*
Package redistore implements an in-memory key/value store that speaks the
Redis Serialization Protocol (RESP) over TCP.

It accepts concurrent client connections, parses a stream of commands
framed in RESP (or the legacy whitespace-separated inline form), applies
them against a shared keyspace with per-key expiration, and writes back
framed responses.

The package is organized as:

  - resp subpackage: the RESP frame codec (parse/serialize).
  - command subpackage: the command model (parse + execute) layered on
    top of the codec and the keyspace.
  - keyspace subpackage: the concurrent map with TTL discipline and
    active expiration.
  - this package (redistore): the per-connection driver and the TCP
    listener that ties the above together.

It is a single-process, single-instance server: there is no replication,
persistence, clustering, pub/sub, transactions, scripting, or auth.
*/
package redistore
