// Package options validates and normalizes product option selections against
// the vendor's option groups before a line is priced.
package options

import (
	"fmt"
	"sort"
	"strings"
)

// Validation failure reasons.
const (
	ReasonUnknownOptionIDs     = "unknown_option_ids"
	ReasonDuplicateGroupChoice = "duplicate_group_choices"
	ReasonMissingGroups        = "missing_groups"
)

// Group is one option group a product exposes, e.g. Size or Color. OptionIDs
// are in vendor display order; the first entry is the group default.
type Group struct {
	Name      string
	OptionIDs []string
}

// Normalized is the validated selection, one option per group.
type Normalized struct {
	// IDs is sorted by group name so equal selections serialize identically.
	IDs     []string
	ByGroup map[string]string
}

// ValidationError describes why a selection was rejected.
type ValidationError struct {
	Reason string
	// IDs or group names involved, depending on Reason.
	Subjects []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("options: %s: %s", e.Reason, strings.Join(e.Subjects, ", "))
}

// IsQuantityGroup reports whether the group encodes quantity rather than a
// real product attribute. Vendors name it "QTY" or "Quantity" in either case.
func IsQuantityGroup(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "qty", "quantity":
		return true
	}
	return false
}

// Normalize validates supplied option ids against groups and returns one
// choice per group. A missing quantity-style group is filled with its first
// option; any other missing group is an error, as are unknown ids and two
// choices within one group.
func Normalize(groups []Group, supplied []string) (Normalized, error) {
	byOption := make(map[string]string)
	for _, g := range groups {
		for _, id := range g.OptionIDs {
			byOption[id] = g.Name
		}
	}

	var unknown []string
	chosen := make(map[string]string, len(groups))
	for _, id := range supplied {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		group, ok := byOption[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		if prev, dup := chosen[group]; dup && prev != id {
			return Normalized{}, &ValidationError{Reason: ReasonDuplicateGroupChoice, Subjects: []string{group}}
		}
		chosen[group] = id
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Normalized{}, &ValidationError{Reason: ReasonUnknownOptionIDs, Subjects: unknown}
	}

	var missing []string
	for _, g := range groups {
		if _, ok := chosen[g.Name]; ok {
			continue
		}
		if IsQuantityGroup(g.Name) && len(g.OptionIDs) > 0 {
			chosen[g.Name] = g.OptionIDs[0]
			continue
		}
		missing = append(missing, g.Name)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Normalized{}, &ValidationError{Reason: ReasonMissingGroups, Subjects: missing}
	}

	names := make([]string, 0, len(chosen))
	for name := range chosen {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, chosen[name])
	}
	return Normalized{IDs: ids, ByGroup: chosen}, nil
}
