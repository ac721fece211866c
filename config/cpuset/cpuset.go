// Package cpuset parses the CPU range syntax used in topology config
// ("0-3,8,12-15") into a sorted, deduplicated CPU id list. Grounded on the
// teacher's service/dao/workflow/parameters tokenizer/cursor pattern
// (parsly.NewCursor + per-field custom matchers).
package cpuset

import (
	"sort"
	"strconv"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceCode = iota
	numberCode
	dashCode
	commaCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	numberToken     = parsly.NewToken(numberCode, "Number", newNumberMatcher())
	dashToken       = parsly.NewToken(dashCode, "-", matcher.NewByte('-'))
	commaToken      = parsly.NewToken(commaCode, ",", matcher.NewByte(','))
)

type numberMatcher struct{}

func newNumberMatcher() parsly.Matcher { return &numberMatcher{} }

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	matched := 0
	for i := pos; i < size && input[i] >= '0' && input[i] <= '9'; i++ {
		matched++
	}
	return matched
}

// Parse parses a CPU range specification into a sorted list of unique CPU
// ids. "0-3,8,12-15" yields [0 1 2 3 8 12 13 14 15].
func Parse(spec string) ([]int, error) {
	cursor := parsly.NewCursor("cpuset", []byte(spec), 0)

	seen := make(map[int]bool)
	var cpus []int
	add := func(cpu int) {
		if !seen[cpu] {
			seen[cpu] = true
			cpus = append(cpus, cpu)
		}
	}

	for {
		matched := cursor.MatchAfterOptional(whitespaceToken, numberToken)
		if matched.Code != numberToken.Code {
			return nil, cursor.NewError(numberToken)
		}
		start, err := strconv.Atoi(matched.Text(cursor))
		if err != nil {
			return nil, err
		}

		sep := cursor.MatchAfterOptional(whitespaceToken, dashToken, commaToken)
		switch sep.Code {
		case dashToken.Code:
			matched = cursor.MatchAfterOptional(whitespaceToken, numberToken)
			if matched.Code != numberToken.Code {
				return nil, cursor.NewError(numberToken)
			}
			end, err := strconv.Atoi(matched.Text(cursor))
			if err != nil {
				return nil, err
			}
			for cpu := start; cpu <= end; cpu++ {
				add(cpu)
			}
			if !cursor.HasMore() {
				sort.Ints(cpus)
				return cpus, nil
			}
			if sep := cursor.MatchAfterOptional(whitespaceToken, commaToken); sep.Code != commaToken.Code {
				return nil, cursor.NewError(commaToken)
			}
		case commaToken.Code:
			add(start)
		default:
			add(start)
			if cursor.HasMore() {
				return nil, cursor.NewError(dashToken, commaToken)
			}
			sort.Ints(cpus)
			return cpus, nil
		}
	}
}
