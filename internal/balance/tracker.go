// Package balance tracks a rolling fingerprint of all account balances so a
// run can tell whether anything changed since the previous run without
// storing history.
package balance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// Snapshot is one account's balance at the end of a run.
type Snapshot struct {
	Quota float64 `json:"quota"`
	Used  float64 `json:"used"`
}

// Tracker loads and saves the persisted fingerprint. The artifact is a single
// text file holding 16 hex characters; its absence means "first run".
type Tracker struct {
	path   string
	logger *slog.Logger
}

// NewTracker creates a Tracker persisting to the given path.
func NewTracker(path string, logger *slog.Logger) *Tracker {
	return &Tracker{path: path, logger: logger}
}

// Load returns the previously saved fingerprint, or "" when none exists.
// Read failures are treated the same as absence.
func (t *Tracker) Load() string {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Save overwrites the persisted fingerprint. Failures are logged, not fatal;
// the next run simply sees no prior state.
func (t *Tracker) Save(fingerprint string) {
	if err := os.WriteFile(t.path, []byte(fingerprint), 0644); err != nil {
		t.logger.Warn("failed to save balance fingerprint", "path", t.path, "error", err)
	}
}

// Compute hashes the balances into a 16-hex-character fingerprint. Only quota
// feeds the hash; used amounts are excluded so that spending alone does not
// trigger a change notification. The input is canonicalised to JSON with
// sorted keys, so the result is independent of map iteration order.
func Compute(balances map[string]Snapshot) string {
	simple := make(map[string]float64, len(balances))
	for key, snap := range balances {
		simple[key] = snap.Quota
	}

	// encoding/json sorts map keys and emits no extraneous whitespace.
	canonical, err := json.Marshal(simple)
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}
