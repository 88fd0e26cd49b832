package provider

import (
	"reflect"
	"sort"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// DiffAttributes returns the sorted top-level attribute names whose values
// differ between prior and desired. Values are normalized first so numbers
// that went through a JSON round trip still compare equal.
func DiffAttributes(prior, desired map[string]any) []string {
	keys := make(map[string]bool, len(prior)+len(desired))
	for k := range prior {
		keys[k] = true
	}
	for k := range desired {
		keys[k] = true
	}

	var changed []string
	for k := range keys {
		pv, inPrior := prior[k]
		dv, inDesired := desired[k]
		if inPrior != inDesired || !reflect.DeepEqual(ir.Normalize(pv), ir.Normalize(dv)) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// ForcedBy returns the changed attributes that force recreation, given the
// kind's own forceNew set and any replaceOn additions from configuration.
func ForcedBy(changed, forceNew, replaceOn []string) []string {
	forcing := make(map[string]bool, len(forceNew)+len(replaceOn))
	for _, a := range forceNew {
		forcing[a] = true
	}
	for _, a := range replaceOn {
		forcing[a] = true
	}

	var forced []string
	for _, a := range changed {
		if forcing[a] {
			forced = append(forced, a)
		}
	}
	return forced
}
