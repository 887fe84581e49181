// Package cache provides the optional Redis layer of the client.
//
// Two stores are built on one Manager:
//
//   - SessionStore shares the negotiated session credential between
//     processes, so parallel tools reuse one session instead of each
//     negotiating (and abandoning) their own on the service.
//   - ReferenceCache remembers referenceId to entry id resolutions.
//
// Every entry carries its own expiry and is written with a matching Redis
// TTL.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	store := cache.NewSessionStore(manager)
//	refs := cache.NewReferenceCache(manager, 123, 24*time.Hour)
//
// # Metrics
//
//   - kaltura_cache_hits_total{kind} - Cache hits
//   - kaltura_cache_misses_total{kind} - Cache misses
//   - kaltura_cache_size_bytes - Bytes written
//   - kaltura_cache_errors_total{operation} - Cache operation errors
package cache
