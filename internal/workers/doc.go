/*
Package workers sizes the transcode worker pool in containerized
environments.

runtime.NumCPU reports the host's CPUs even when a cgroup limits the
container to a fraction of them. GOMAXPROCS follows the container limit
(Go 1.19+), so the pool is sized from it instead:

	numWorkers := workers.ForCPU(4) // one ffmpeg per CPU, at most 4

Each ffmpeg process is itself multithreaded, so running more encoders than
CPUs only adds context switching. Hosts with spare capacity or a GPU
encoder can raise the count explicitly:

	env:
	- name: TRANSCODE_WORKERS
	  value: "6"

The override is still capped by the limit passed in.
*/
package workers
