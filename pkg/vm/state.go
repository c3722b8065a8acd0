package vm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// StateTable maps what `virsh domstate` prints to a State. Keys are normalized with
// NormalizeStateKey, so localized output and typographic apostrophes match.
type StateTable struct {
	entries map[string]State
}

// DefaultStateTable knows the English states plus the French ones a localized virsh prints.
// Transitional and error states (paused, idle, in shutdown, crashed, pmsuspended, blocked,
// dying) are mapped to StateUnknown explicitly, so they resolve without the
// unrecognized-state warning that any other value gets.
func DefaultStateTable() *StateTable {
	t := &StateTable{entries: make(map[string]State)}
	t.Add(StateUp, "running", "en cours d'exécution")
	t.Add(StateDown, "shut off", "arrêté", "fermé")
	t.Add(StateUnknown, "paused", "idle", "in shutdown", "crashed", "pmsuspended", "blocked", "dying")
	return t
}

// Add maps each raw value to s, replacing earlier mappings.
func (t *StateTable) Add(s State, raw ...string) *StateTable {
	for _, r := range raw {
		if k := NormalizeStateKey(r); k != "" {
			t.entries[k] = s
		}
	}
	return t
}

// NormalizeStateKey trims, lower-cases and folds typographic apostrophes.
func NormalizeStateKey(raw string) string {
	k := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer("’", "'", "‘", "'").Replace(k)
}

// Normalize maps raw to a State. mapped is false only for non-empty values the table
// does not know; empty output maps to StateUnknown silently.
func (t *StateTable) Normalize(raw string) (s State, mapped bool) {
	k := NormalizeStateKey(raw)
	if k == "" {
		return StateUnknown, true
	}
	s, mapped = t.entries[k]
	return s, mapped
}

// resolve is Normalize plus the warning for unmapped values.
func (t *StateTable) resolve(ctx context.Context, name, raw string) State {
	s, mapped := t.Normalize(raw)
	if !mapped {
		zerolog.Ctx(ctx).Warn().Str("domain", name).Str("state", strings.TrimSpace(raw)).Msg("Unrecognized domain state")
	}
	return s
}
