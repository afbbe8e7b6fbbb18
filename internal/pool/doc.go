// Package pool provides buffer reuse for in-flight upload chunks.
package pool
