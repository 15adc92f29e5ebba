package category

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var embeddedCategories []byte

// MatchThreshold is the largest normalized edit distance still treated as the same item.
const MatchThreshold = 0.3

const minItemLen = 2

var ErrNoCategories = errors.New("no categories defined")

type Category struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

// Oracle answers category-membership and fuzzy-duplicate questions.
// It is read-only after construction and safe for concurrent use.
type Oracle struct {
	categories []Category
	byName     map[string]int
}

// Load reads word lists from path, or the embedded lists when path is empty.
func Load(path string) (*Oracle, error) {
	if path == "" {
		return Parse(embeddedCategories)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("categories: read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Oracle, error) {
	var cats []Category
	if err := yaml.Unmarshal(data, &cats); err != nil {
		return nil, fmt.Errorf("categories: parse: %w", err)
	}

	o := &Oracle{byName: make(map[string]int)}
	for _, c := range cats {
		name := strings.TrimSpace(c.Name)
		if name == "" || len(c.Items) == 0 {
			continue
		}
		items := make([]string, 0, len(c.Items))
		for _, it := range c.Items {
			if n := Normalize(it); n != "" {
				items = append(items, n)
			}
		}
		o.byName[strings.ToLower(name)] = len(o.categories)
		o.categories = append(o.categories, Category{Name: name, Items: items})
	}
	if len(o.categories) == 0 {
		return nil, ErrNoCategories
	}
	return o, nil
}

// MustDefault returns the oracle over the embedded word lists.
func MustDefault() *Oracle {
	o, err := Parse(embeddedCategories)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Oracle) Categories() []string {
	out := make([]string, len(o.categories))
	for i, c := range o.categories {
		out[i] = c.Name
	}
	return out
}

func (o *Oracle) ListValidItems(category string) []string {
	c, ok := o.lookup(category)
	if !ok {
		return nil
	}
	return append([]string(nil), c.Items...)
}

// IsValidItem reports whether item belongs to category and neither it nor its
// closest match has been used yet.
func (o *Oracle) IsValidItem(category, item string, used []string) bool {
	c, ok := o.lookup(category)
	if !ok {
		return false
	}

	n := Normalize(item)
	if utf8.RuneCountInString(n) < minItemLen {
		return false
	}

	usedNorm := make([]string, 0, len(used))
	for _, u := range used {
		un := Normalize(u)
		if un == n {
			return false
		}
		usedNorm = append(usedNorm, un)
	}

	best, ok := bestMatch(n, c.Items)
	if !ok {
		return false
	}
	for _, u := range usedNorm {
		if similar(best, u) {
			return false
		}
	}
	return true
}

func (o *Oracle) lookup(category string) (Category, bool) {
	i, ok := o.byName[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return Category{}, false
	}
	return o.categories[i], true
}

// Normalize lower-cases, trims and collapses inner whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func bestMatch(item string, candidates []string) (string, bool) {
	best, bestRatio := "", 2.0
	for _, c := range candidates {
		r := ratio(item, c)
		if r < bestRatio {
			best, bestRatio = c, r
		}
		if r == 0 {
			break
		}
	}
	return best, bestRatio <= MatchThreshold
}

func similar(a, b string) bool {
	return ratio(a, b) <= MatchThreshold
}

func ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}
