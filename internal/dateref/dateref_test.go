package dateref_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/dateref"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
)

var now = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func month(m int) *int { return &m }

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *domain.DateReference
	}{
		{"two years ago with month", "재작년 1월 식비 알려줘", &domain.DateReference{Year: 2023, Month: month(1)}},
		{"two years ago without space", "재작년12월 지출", &domain.DateReference{Year: 2023, Month: month(12)}},
		{"two years ago alone", "재작년 총 수입은?", &domain.DateReference{Year: 2023}},
		{"last year with month", "작년 1월에 식비 얼마 썼어?", &domain.DateReference{Year: 2024, Month: month(1)}},
		{"last year alone", "작년 지출 요약", &domain.DateReference{Year: 2024}},
		{"explicit year and month", "2022년 3월 월급", &domain.DateReference{Year: 2022, Month: month(3)}},
		{"explicit year", "2021년 전체 수입", &domain.DateReference{Year: 2021}},
		{"bare month", "5월 외식비", &domain.DateReference{Year: 2025, Month: month(5)}},
		{"no date", "이번에 얼마 썼어?", nil},
		{"invalid bare month", "13월 지출", nil},
		{"invalid month falls through to year", "2024년 13월", &domain.DateReference{Year: 2024}},
		{"relative wins over explicit", "작년 2월과 2023년 5월", &domain.DateReference{Year: 2024, Month: month(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateref.Extract(tt.text, now)
			assertRef(t, got, tt.want)
		})
	}
}

func TestExtract_TwoYearsAgoAnyMonth(t *testing.T) {
	for m := 1; m <= 12; m++ {
		got := dateref.Extract("재작년 "+strconv.Itoa(m)+"월 거래", now)
		if got == nil || got.Year != 2023 || got.Month == nil || *got.Month != m {
			t.Errorf("month %d: expected (2023, %d), got %+v", m, m, got)
		}
	}
}

func TestExtract_BareMonthUsesCurrentYear(t *testing.T) {
	for m := 1; m <= 12; m++ {
		got := dateref.Extract(strconv.Itoa(m)+"월 지출", now)
		if got == nil || got.Year != now.Year() || got.Month == nil || *got.Month != m {
			t.Errorf("month %d: expected (%d, %d), got %+v", m, now.Year(), m, got)
		}
	}
}

func TestExtractComparison(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *domain.ComparisonReference
	}{
		{
			name: "single expression pairs with now",
			text: "작년 1월이랑 비교해줘",
			want: &domain.ComparisonReference{
				First:  domain.DateReference{Year: 2024, Month: month(1)},
				Second: domain.DateReference{Year: 2025, Month: month(6)},
			},
		},
		{
			name: "two expressions in priority order",
			text: "올해 3월과 작년 3월 비교",
			want: &domain.ComparisonReference{
				First:  domain.DateReference{Year: 2024, Month: month(3)},
				Second: domain.DateReference{Year: 2025, Month: month(3)},
			},
		},
		{
			name: "last year is not matched inside two years ago",
			text: "재작년 1월과 작년 4월",
			want: &domain.ComparisonReference{
				First:  domain.DateReference{Year: 2023, Month: month(1)},
				Second: domain.DateReference{Year: 2024, Month: month(4)},
			},
		},
		{
			name: "two years ago alone pairs with now",
			text: "재작년 7월 대비 지금은?",
			want: &domain.ComparisonReference{
				First:  domain.DateReference{Year: 2023, Month: month(7)},
				Second: domain.DateReference{Year: 2025, Month: month(6)},
			},
		},
		{
			name: "explicit year month",
			text: "이번 2월하고 2022년 2월",
			want: &domain.ComparisonReference{
				First:  domain.DateReference{Year: 2025, Month: month(2)},
				Second: domain.DateReference{Year: 2022, Month: month(2)},
			},
		},
		{name: "no comparison", text: "식비 얼마야", want: nil},
		{name: "bare month is not a comparison", text: "5월 지출", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateref.ExtractComparison(tt.text, now)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %+v, got nil", tt.want)
			}
			assertRef(t, &got.First, &tt.want.First)
			assertRef(t, &got.Second, &tt.want.Second)
		})
	}
}

func TestDateReference_String(t *testing.T) {
	if s := (domain.DateReference{Year: 2024, Month: month(1)}).String(); s != "2024년 1월" {
		t.Errorf("expected '2024년 1월', got '%s'", s)
	}
	if s := (domain.DateReference{Year: 2024}).String(); s != "2024년" {
		t.Errorf("expected '2024년', got '%s'", s)
	}
}

func assertRef(t *testing.T, got, want *domain.DateReference) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Fatalf("expected nil, got %+v", got)
		}
		return
	}
	if got == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got.String() != want.String() {
		t.Errorf("expected %s, got %s", want, got)
	}
}
