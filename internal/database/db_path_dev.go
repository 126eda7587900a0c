//go:build !prod

package database

// GetDefaultDBPath places the dev database next to the source tree, where it
// is easy to inspect and delete.
func GetDefaultDBPath() string {
	return "stepweave.db"
}
