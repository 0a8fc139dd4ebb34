package ballot

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// MetaAlternatives is the metadata key carrying the number of alternatives.
const MetaAlternatives = "NUMBER ALTERNATIVES"

// File is a parsed ballot file.
type File struct {
	Metadata     map[string]string
	Alternatives int
	Store        *Store
}

// Parse reads the ballot text format:
//
//	# NUMBER ALTERNATIVES: 4
//	3: 1,{2,3},4
//
// The number before the colon is how many voters cast the ranking. A line
// without a colon that is not a comment carries no ballot and is skipped. A
// data line that cannot be parsed fails with ErrMalformedLine.
func Parse(r io.Reader) (*File, error) {
	f := &File{Metadata: make(map[string]string), Store: NewStore()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			kv := strings.SplitN(strings.TrimSpace(strings.TrimLeft(line, "#")), ":", 2)
			if len(kv) == 2 {
				f.Metadata[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
			continue
		}

		head, body, ok := strings.Cut(line, ":")
		if !ok {
			log.Warn().Int("line", lineNo).Str("text", line).Msg("skipping line without a colon")
			continue
		}

		count, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			return nil, fmt.Errorf("line %d: vote count %q: %w", lineNo, head, ErrMalformedLine)
		}
		b, err := ParseBallot(body)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := f.Store.Add(b, count); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}

	if v, ok := f.Metadata[MetaAlternatives]; ok {
		m, err := strconv.Atoi(v)
		if err != nil || m <= 0 {
			return nil, fmt.Errorf("metadata %s=%q: %w", MetaAlternatives, v, ErrMissingAlternativeCount)
		}
		f.Alternatives = m
	} else {
		f.Alternatives = f.Store.MaxAlternative()
		log.Debug().Int("alternatives", f.Alternatives).Msg("alternative count not declared, using largest id")
	}

	if err := f.Store.Validate(f.Alternatives); err != nil {
		return nil, err
	}

	log.Debug().
		Int("lines", lineNo).
		Int("rows", f.Store.Len()).
		Int("voters", f.Store.Total()).
		Int("alternatives", f.Alternatives).
		Msg("parsed ballot file")
	return f, nil
}

// ParseBallot parses one ranking such as "1,{2,3},4".
func ParseBallot(s string) (Ballot, error) {
	tokens, err := splitTopLevel(s)
	if err != nil {
		return nil, err
	}

	b := make(Ballot, 0, len(tokens))
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "{") {
			inner := strings.TrimSpace(tok[1 : len(tok)-1])
			if inner == "" {
				return nil, fmt.Errorf("tie set %q: %w", tok, ErrMalformedLine)
			}
			var g RankGroup
			for _, part := range strings.Split(inner, ",") {
				a, err := parseAlternative(part)
				if err != nil {
					return nil, err
				}
				g = append(g, a)
			}
			b = append(b, g)
			continue
		}
		a, err := parseAlternative(tok)
		if err != nil {
			return nil, err
		}
		b = append(b, RankGroup{a})
	}
	return b, nil
}

func parseAlternative(s string) (Alternative, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("alternative %q: %w", s, ErrMalformedLine)
	}
	return Alternative(v), nil
}

// splitTopLevel splits on commas outside braces. Every token is non-empty and
// braces are balanced and unnested.
func splitTopLevel(s string) ([]string, error) {
	var (
		tokens []string
		start  int
		inSet  bool
	)
	emit := func(end int) error {
		tok := strings.TrimSpace(s[start:end])
		if tok == "" {
			return fmt.Errorf("empty rank in %q: %w", s, ErrMalformedLine)
		}
		if strings.HasPrefix(tok, "{") != strings.HasSuffix(tok, "}") {
			return fmt.Errorf("rank %q: %w", tok, ErrMalformedLine)
		}
		tokens = append(tokens, tok)
		return nil
	}

	for i, c := range s {
		switch c {
		case '{':
			if inSet {
				return nil, fmt.Errorf("nested tie set in %q: %w", s, ErrMalformedLine)
			}
			inSet = true
		case '}':
			if !inSet {
				return nil, fmt.Errorf("unbalanced tie set in %q: %w", s, ErrMalformedLine)
			}
			inSet = false
		case ',':
			if inSet {
				continue
			}
			if err := emit(i); err != nil {
				return nil, err
			}
			start = i + 1
		}
	}
	if inSet {
		return nil, fmt.Errorf("unterminated tie set in %q: %w", s, ErrMalformedLine)
	}
	if err := emit(len(s)); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Write renders f in the format Parse reads. Entries that share a ranking
// but came from different rows are written on separate lines; parsing merges
// them again without changing the total count.
func Write(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)

	meta := maps.Clone(f.Metadata)
	if meta == nil {
		meta = make(map[string]string)
	}
	meta[MetaAlternatives] = strconv.Itoa(f.Alternatives)
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if _, err := fmt.Fprintf(bw, "# %s: %s\n", k, meta[k]); err != nil {
			return err
		}
	}

	var err error
	f.Store.Each(func(e Entry) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(bw, "%d: %s\n", e.Count, e.Ballot)
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}
