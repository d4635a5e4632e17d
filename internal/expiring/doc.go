// Package expiring provides a concurrency-safe map whose entries expire a
// fixed time after their last write.
//
// Expired entries are never returned by Get, even before the background
// sweep has removed them. The sweep runs every TTL/2 by default so memory
// stays proportional to the number of live entries.
package expiring
