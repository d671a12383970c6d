package kb

import (
	"sort"
	"strings"
	"unicode"

	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// NameIndex maps a folded person sub-name to the ids of persons carrying it.
type NameIndex map[string][]int

// BuildNameIndex indexes every person entity by the sub-names of its NAME and
// ALIASES plus "the <role>" forms of its ROLES.
func BuildNameIndex(entities []*Entity) NameIndex {
	sets := make(map[string]map[int]struct{})
	add := func(key string, id int) {
		if key == "" {
			return
		}
		ids, ok := sets[key]
		if !ok {
			ids = make(map[int]struct{})
			sets[key] = ids
		}
		ids[id] = struct{}{}
	}

	for _, e := range entities {
		if e == nil || !e.Types.Has(TypePerson) {
			continue
		}
		wholeNames := append(e.FieldList(FieldAliases), e.FieldList(FieldName)...)
		for _, sub := range SubNames(wholeNames) {
			add(textutil.FoldName(sub), e.ID)
		}
		for _, role := range e.FieldList(FieldRoles) {
			add(textutil.FoldName("the "+role), e.ID)
		}
	}

	idx := make(NameIndex, len(sets))
	for key, ids := range sets {
		list := make([]int, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Ints(list)
		idx[key] = list
	}
	return idx
}

// SubNames splits whole names into the words that can stand alone as a name:
// capitalised, longer than an initial, and not a title.
func SubNames(wholeNames []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range wholeNames {
		for _, word := range strings.Fields(name) {
			word = strings.Trim(word, ",")
			if !looksLikeName(word) {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			out = append(out, word)
		}
	}
	return out
}

func looksLikeName(word string) bool {
	r := []rune(word)
	if len(r) < 2 || !unicode.IsUpper(r[0]) {
		return false
	}
	if strings.HasSuffix(word, ".") || textutil.IsTitle(word) {
		return false
	}
	for _, c := range r {
		if unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// Keys returns the index keys in sorted order.
func (idx NameIndex) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
