package generator

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mcncl/enphase-api/internal/metadata"
)

// IndexFile is the name of the index document in the documentation root.
const IndexFile = "README.adoc"

// Index renders the document listing every documented endpoint, grouped by
// the category path of its key.
func (g *Generator) Index(catalog *metadata.Catalog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "= %s\n", g.doc.Title)
	b.WriteString(":toc:\n")
	b.WriteString(g.Settings())
	b.WriteString(g.Introduction("", 1))

	b.WriteString("\n== Endpoints\n\n")

	fold := cases.Fold()
	var keys []string
	folded := map[string]string{}
	catalog.Range(func(key string, e *metadata.Endpoint) {
		if e.Documentation != "" {
			keys = append(keys, key)
			folded[key] = fold.String(key)
		}
	})
	sort.SliceStable(keys, func(i, j int) bool {
		return folded[keys[i]] < folded[keys[j]]
	})

	var previous []string
	tableOpen := false
	closeTable := func() {
		if tableOpen {
			b.WriteString("|===\n\n")
			tableOpen = false
		}
	}

	for _, key := range keys {
		e, _ := catalog.Get(key)
		path := strings.Split(key, metadata.KeyDelimiter)

		// Once one heading differs every deeper heading is new as well.
		diverged := previous == nil
		for level := 0; level < len(path)-1; level++ {
			if !diverged && (level >= len(previous)-1 || previous[level] != path[level]) {
				diverged = true
			}
			if diverged {
				closeTable()
				fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("=", 3+level), strings.Join(path[:level+1], " - "))
			}
		}

		if !tableOpen || !sameGroup(previous, path) {
			closeTable()
			b.WriteString("[cols=\"1,1,2\", options=\"header\"]\n")
			b.WriteString("|===\n")
			b.WriteString("|Name\n")
			b.WriteString("|URI\n")
			b.WriteString("|Description\n\n")
			tableOpen = true
		}
		previous = path

		fmt.Fprintf(&b, "|`link:%s[%s]`\n", Quote(e.Documentation), path[len(path)-1])
		b.WriteString(uriCell(e.Request))

		short := e.ShortDescription()
		if short == "" {
			short = Placeholder
		}
		fmt.Fprintf(&b, "|%s\n\n", short)
	}

	if tableOpen {
		b.WriteString("|===")
	}

	return b.String()
}

func sameGroup(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a)-1; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func uriCell(r *metadata.Request) string {
	if r == nil {
		return "|\n"
	}
	var b strings.Builder
	b.WriteString("|`")
	if r.Removed {
		b.WriteString("+++<s>+++")
	}
	b.WriteString("/" + r.URI)
	if r.Removed {
		b.WriteString("+++</s>+++")
	}
	if r.URI2 != "" {
		b.WriteString("` and `/" + r.URI2)
	}
	b.WriteString("`\n")
	return b.String()
}

// Quote percent-encodes a document path for use in a link target. Letters,
// digits, "_.-~" and "/" are kept; every other byte is escaped.
func Quote(path string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '.', c == '-', c == '~':
		return true
	}
	return false
}
