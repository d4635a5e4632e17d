// Package jobs tracks asynchronous transcode jobs.
//
// A Store keeps job status in an expiring map, so finished jobs disappear a
// fixed time after their last write whether or not anyone polled them.
// A Manager owns the worker pool that runs job tasks: handlers hand a task
// off with Submit and return immediately, and the only way to observe the
// result is through the Store. Jobs do not survive a process restart.
package jobs
