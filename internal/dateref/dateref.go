// Package dateref resolves Korean relative and absolute date expressions
// ("재작년 1월", "작년", "2024년 3월", "5월") into year/month references.
package dateref

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
)

type rule struct {
	re      *regexp.Regexp
	resolve func(m []string, now time.Time) (domain.DateReference, bool)
}

// Most specific first. Extract stops at the first rule that resolves.
var rules = []rule{
	{regexp.MustCompile(`재작년\s*(\d+)월`), func(m []string, now time.Time) (domain.DateReference, bool) {
		return withMonth(now.Year()-2, m[1])
	}},
	{regexp.MustCompile(`재작년`), func(_ []string, now time.Time) (domain.DateReference, bool) {
		return domain.DateReference{Year: now.Year() - 2}, true
	}},
	{regexp.MustCompile(`작년\s*(\d+)월`), func(m []string, now time.Time) (domain.DateReference, bool) {
		return withMonth(now.Year()-1, m[1])
	}},
	{regexp.MustCompile(`작년`), func(_ []string, now time.Time) (domain.DateReference, bool) {
		return domain.DateReference{Year: now.Year() - 1}, true
	}},
	{regexp.MustCompile(`(\d{4})년\s*(\d+)월`), func(m []string, _ time.Time) (domain.DateReference, bool) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return domain.DateReference{}, false
		}
		return withMonth(year, m[2])
	}},
	{regexp.MustCompile(`(\d{4})년`), func(m []string, _ time.Time) (domain.DateReference, bool) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return domain.DateReference{}, false
		}
		return domain.DateReference{Year: year}, true
	}},
	{regexp.MustCompile(`(\d+)월`), func(m []string, now time.Time) (domain.DateReference, bool) {
		return withMonth(now.Year(), m[1])
	}},
}

// Extract returns the reference named by the first matching rule, or nil.
// A rule whose digits do not form a valid month is skipped.
func Extract(text string, now time.Time) *domain.DateReference {
	text = strings.ToLower(text)
	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if ref, ok := r.resolve(m, now); ok {
			return &ref
		}
	}
	return nil
}

var (
	twoYearsAgoMonth = regexp.MustCompile(`재작년\s*(\d+)월`)
	lastYearMonth    = regexp.MustCompile(`작년\s*(\d+)월`)
	thisYearMonth    = regexp.MustCompile(`(?:올해|이번)\s*(\d+)월`)
	yearMonth        = regexp.MustCompile(`(\d{4})년\s*(\d+)월`)
)

// ExtractComparison looks for up to two month references to compare, in the
// order 재작년, 작년, 올해/이번, explicit year. A single hit is paired with the
// current month. Returns nil when nothing is found.
func ExtractComparison(text string, now time.Time) *domain.ComparisonReference {
	text = strings.ToLower(text)
	var found []domain.DateReference

	if m := twoYearsAgoMonth.FindStringSubmatch(text); m != nil {
		if ref, ok := withMonth(now.Year()-2, m[1]); ok {
			found = append(found, ref)
		}
	}
	if m := firstOutside(lastYearMonth, text, "재"); m != nil {
		if ref, ok := withMonth(now.Year()-1, m[1]); ok {
			found = append(found, ref)
		}
	}
	if m := thisYearMonth.FindStringSubmatch(text); m != nil {
		if ref, ok := withMonth(now.Year(), m[1]); ok {
			found = append(found, ref)
		}
	}
	if m := yearMonth.FindStringSubmatch(text); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			if ref, ok := withMonth(year, m[2]); ok {
				found = append(found, ref)
			}
		}
	}

	switch len(found) {
	case 0:
		return nil
	case 1:
		month := int(now.Month())
		return &domain.ComparisonReference{
			First:  found[0],
			Second: domain.DateReference{Year: now.Year(), Month: &month},
		}
	default:
		return &domain.ComparisonReference{First: found[0], Second: found[1]}
	}
}

// firstOutside returns the submatches of the first match of re that is not
// directly preceded by prefix, so "작년" never matches inside "재작년".
func firstOutside(re *regexp.Regexp, text, prefix string) []string {
	for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
		if strings.HasSuffix(text[:idx[0]], prefix) {
			continue
		}
		m := make([]string, len(idx)/2)
		for i := range m {
			if idx[2*i] >= 0 {
				m[i] = text[idx[2*i]:idx[2*i+1]]
			}
		}
		return m
	}
	return nil
}

func withMonth(year int, digits string) (domain.DateReference, bool) {
	month, err := strconv.Atoi(digits)
	if err != nil || month < 1 || month > 12 {
		return domain.DateReference{}, false
	}
	return domain.DateReference{Year: year, Month: &month}, true
}
