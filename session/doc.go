// Package session tracks live authenticated sessions. The Registry
// generates collision-free ids and delegates persistence to a Store;
// MemoryStore serves single-process deployments and RedisStore shares
// sessions across processes.
//
// Sessions here are a registry, not a cache: token validation does not
// consult them on the hot path. They exist so logout and logout-all can
// name what to kill.
package session
