/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

When running in containers, the number of available CPUs may be limited by
cgroup constraints. Go 1.19+ sets GOMAXPROCS from the container CPU limit,
while runtime.NumCPU() still reports the host machine's count. The helpers
here derive worker counts from GOMAXPROCS so pools respect the limit.

# Usage

	// CPU-intensive work: 1 worker per available CPU
	n := workers.ForCPU(8) // max 8

	// I/O-bound work: 2 workers per available CPU
	n := workers.ForIO(16) // max 16

	// Mixed work such as hash-and-thumbnail tasks (read file, run the
	// external tool, write result): 1.5 workers per available CPU
	n := workers.ForMixed(12) // max 12

For fine-grained control use Count directly:

	n := workers.Count(3.0, 24)

# Environment Override

All functions respect the INDEX_WORKERS environment variable:

	env:
	- name: INDEX_WORKERS
	  value: "4"

Each index pool worker drives at most one external tool process, so this
variable also bounds concurrent ffmpeg invocations.

All functions are safe for concurrent use.
*/
package workers
