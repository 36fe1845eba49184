// Package memory sets the Go soft memory limit (GOMEMLIMIT) from the
// container memory limit.
//
// In Kubernetes the limit is usually passed through the Downward API:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// Only a share of the limit goes to the Go heap since every cache miss starts
// an FFmpeg process in the same container.
package memory
