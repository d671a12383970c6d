package matcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

type trieNode struct {
	next map[rune]*trieNode
	ids  []int
}

func (n *trieNode) child(r rune) *trieNode {
	if n.next == nil {
		n.next = make(map[rune]*trieNode)
	}
	c, ok := n.next[r]
	if !ok {
		c = &trieNode{}
		n.next[r] = c
	}
	return c
}

// Dictionary is an in-memory matcher over a list of name variants. Matches
// must start and end on word boundaries.
type Dictionary struct {
	root    trieNode
	entries int
	// lower stores every fragment lowercased, for matching lowercased text.
	lower bool
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{}
}

// NewLowercaseDictionary creates an empty dictionary that lowercases every
// fragment it is given, rune by rune.
func NewLowercaseDictionary() *Dictionary {
	return &Dictionary{lower: true}
}

// LoadDictionary reads a dictionary file: one "fragment TAB id[;id...]" per line.
// A missing or unreadable file is ErrDictionaryMissing.
func LoadDictionary(path string) (*Dictionary, error) {
	return load(path, NewDictionary())
}

// LoadLowercaseDictionary reads a dictionary file into a lowercase dictionary.
func LoadLowercaseDictionary(path string) (*Dictionary, error) {
	return load(path, NewLowercaseDictionary())
}

func load(path string, d *Dictionary) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", pferrors.ErrDictionaryMissing, path)
		}
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()

	if err := d.Read(f); err != nil {
		return nil, err
	}
	return d, nil
}

// Read adds every entry of r.
func (d *Dictionary) Read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fragment, idList, ok := strings.Cut(text, "\t")
		if !ok {
			return fmt.Errorf("dictionary line %d: %w: missing id column", line, pferrors.ErrMalformedRecord)
		}
		var ids []int
		for _, s := range strings.Split(idList, ";") {
			id, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("dictionary line %d: %w: bad id %q", line, pferrors.ErrMalformedRecord, s)
			}
			ids = append(ids, id)
		}
		d.Add(fragment, ids...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read dictionary: %w", err)
	}
	return nil
}

// Add registers fragment for ids. Adding the same fragment again merges ids.
func (d *Dictionary) Add(fragment string, ids ...int) {
	if fragment == "" || len(ids) == 0 {
		return
	}
	if d.lower {
		fragment = strings.Map(unicode.ToLower, fragment)
	}
	n := &d.root
	for _, r := range fragment {
		n = n.child(r)
	}
	if n.ids == nil {
		d.entries++
	}
	n.ids = mergeIDs(n.ids, ids)
}

// AddPronouns registers each word, and its capitalised form, with the pronoun id.
func (d *Dictionary) AddPronouns(words []string) {
	for _, w := range words {
		d.Add(w, PronounID)
		if rs := []rune(w); len(rs) > 0 {
			rs[0] = unicode.ToUpper(rs[0])
			d.Add(string(rs), PronounID)
		}
	}
}

// Len returns the number of distinct fragments.
func (d *Dictionary) Len() int { return d.entries }

// Lookup returns every match in text, by start offset and longest first.
func (d *Dictionary) Lookup(ctx context.Context, text string) ([]Record, error) {
	rs := []rune(text)
	var out []Record
	for start := range rs {
		if start%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if start > 0 && isWordRune(rs[start-1]) {
			continue
		}
		var found []Record
		n := &d.root
		for i := start; i < len(rs); i++ {
			n = n.next[rs[i]]
			if n == nil {
				break
			}
			if n.ids == nil {
				continue
			}
			if i+1 < len(rs) && isWordRune(rs[i+1]) && isWordRune(rs[i]) {
				continue
			}
			found = append(found, Record{
				IDs:      append([]int(nil), n.ids...),
				Start:    start,
				End:      i + 1,
				Fragment: string(rs[start : i+1]),
				Flag:     FlagFull,
			})
		}
		for i := len(found) - 1; i >= 0; i-- {
			out = append(out, found[i])
		}
	}
	return out, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func mergeIDs(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	var out []int
	for _, id := range append(append([]int(nil), a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
