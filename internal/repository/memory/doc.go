// Package memory provides in-process implementations of the repository
// interfaces. They back tests, the CLI dry runs and KB_STORE=memory.
package memory
