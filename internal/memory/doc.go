// Package memory sets the Go runtime's soft memory limit from the container
// limit.
//
// Go detects cgroup CPU limits on its own but not memory limits, so a busy
// uploader can be OOM-killed while the heap is still growing. Uploads are
// streamed to disk, and the large allocations belong to FFmpeg child
// processes, which GOMEMLIMIT does not cover. The default ratio therefore
// leaves a quarter of the container for them.
//
// Call [ConfigureFromEnv] at the top of main:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit, in bytes or with a unit ("512Mi",
//     "2GiB"), usually injected with the Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between 0
//     and 1 (default 0.75).
//
// Example Downward API wiring:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
package memory
