package util

import "log"

// BestEffort runs fn and degrades any failure to a logged warning. Used for
// diagnostic and artifact writes that must never abort a run.
func BestEffort(label string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("best-effort %s failed: %v", label, err)
	}
}
