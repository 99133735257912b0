package vm

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/dlclark/regexp2"
)

// RegExpObject represents a JavaScript RegExp object backed by regexp2 in
// ECMAScript mode. lastIndex lives as an ordinary own data property.
type RegExpObject struct {
	PlainObject
	compiled   *regexp2.Regexp
	source     string
	flags      string
	global     bool
	ignoreCase bool
	multiline  bool
	dotAll     bool
	unicode    bool
	sticky     bool
}

// NewRegExp compiles pattern with JavaScript flags.
func NewRegExp(pattern, flags string) (Value, error) {
	re := &RegExpObject{source: pattern, flags: flags}
	var opts regexp2.RegexOptions = regexp2.ECMAScript
	for _, f := range flags {
		if strings.Count(flags, string(f)) > 1 {
			return Undefined, fmt.Errorf("invalid regular expression flags '%s'", flags)
		}
		switch f {
		case 'g':
			re.global = true
		case 'i':
			re.ignoreCase = true
			opts |= regexp2.IgnoreCase
		case 'm':
			re.multiline = true
			opts |= regexp2.Multiline
		case 's':
			re.dotAll = true
			opts |= regexp2.Singleline
		case 'u':
			re.unicode = true
			opts |= regexp2.Unicode
		case 'y':
			re.sticky = true
		default:
			return Undefined, fmt.Errorf("invalid regular expression flags '%s'", flags)
		}
	}
	compiled, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return Undefined, fmt.Errorf("invalid regular expression: /%s/: %v", pattern, err)
	}
	re.compiled = compiled
	re.init(Null)
	w, e, c := true, false, false
	re.DefineOwnProperty("lastIndex", IntegerValue(0), &w, &e, &c)
	return Value{typ: TypeRegExp, obj: unsafe.Pointer(re)}, nil
}

func (re *RegExpObject) Source() string   { return re.source }
func (re *RegExpObject) Flags() string    { return re.flags }
func (re *RegExpObject) Global() bool     { return re.global }
func (re *RegExpObject) Unicode() bool    { return re.unicode }
func (re *RegExpObject) Sticky() bool     { return re.sticky }
func (re *RegExpObject) IgnoreCase() bool { return re.ignoreCase }
func (re *RegExpObject) Multiline() bool  { return re.multiline }
func (re *RegExpObject) DotAll() bool     { return re.dotAll }

// Match is one successful match. Index and End are rune offsets into the
// subject; Groups holds the captures with undefined for non-participating ones.
type Match struct {
	Index  int
	End    int
	Groups []Value
}

// MatchAt runs the matcher starting at rune offset start. Sticky matching
// requires the match to begin exactly at start.
func (re *RegExpObject) MatchAt(subject []rune, start int) (*Match, error) {
	if start > len(subject) {
		return nil, nil
	}
	m, err := re.compiled.FindRunesMatchStartingAt(subject, start)
	if err != nil || m == nil {
		return nil, err
	}
	if re.sticky && m.Index != start {
		return nil, nil
	}
	groups := m.Groups()
	out := &Match{Index: m.Index, End: m.Index + m.Length, Groups: make([]Value, len(groups))}
	for i, g := range groups {
		if len(g.Captures) == 0 {
			out.Groups[i] = Undefined
			continue
		}
		out.Groups[i] = NewString(g.String())
	}
	return out, nil
}
