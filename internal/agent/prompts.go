package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
)

const (
	analysisSystemPrompt = "당신은 질문 분석 전문가입니다. JSON 형식으로만 응답하세요."
	optimizeSystemPrompt = "당신은 컨텍스트 최적화 전문가입니다. 사용자 질문에 맞게 컨텍스트를 재구성하세요."

	noneLabel = "없음"
)

func describeReference(ref *domain.DateReference) string {
	if ref == nil {
		return noneLabel
	}
	return ref.String()
}

func describeComparison(cmp *domain.ComparisonReference) string {
	if cmp == nil {
		return noneLabel
	}
	return cmp.First.String() + " / " + cmp.Second.String()
}

func analysisPrompt(question string, now time.Time, ref *domain.DateReference, cmp *domain.ComparisonReference) string {
	y := now.Year()
	var b strings.Builder

	b.WriteString("사용자의 질문을 분석하여 필요한 데이터를 파악하세요.\n\n")
	b.WriteString("중요: 현재 년도 정보\n")
	fmt.Fprintf(&b, "- 현재 년도: %d년 %d월\n", y, int(now.Month()))
	fmt.Fprintf(&b, "- '재작년'은 %d년을 의미합니다\n", y-2)
	fmt.Fprintf(&b, "- '재작년 1월'은 %d년 1월을 의미합니다\n", y-2)
	fmt.Fprintf(&b, "- '작년'은 %d년을 의미합니다\n", y-1)
	fmt.Fprintf(&b, "- '작년 1월'은 %d년 1월을 의미합니다\n", y-1)
	fmt.Fprintf(&b, "- '올해' 또는 '이번'은 %d년을 의미합니다\n\n", y)

	fmt.Fprintf(&b, "사용자 질문: %s\n\n", question)

	b.WriteString(`다음 정보를 JSON 형식으로 반환하세요:
{
    "data_types": ["transactions", "monthly_statistics", "category_statistics", "categories"],
    "date_info": {
        "year": null,
        "month": null,
        "start_date": null,
        "end_date": null
    },
    "filters": {
        "category_type": null,
        "transaction_type": null,
        "category_id": null,
        "keywords": []
    },
    "reasoning": "왜 이 데이터가 필요한지 간단히 설명"
}

사용 가능한 데이터 타입:
- transactions: 거래 내역
- monthly_statistics: 월별 통계
- category_statistics: 카테고리별 통계
- categories: 카테고리 목록

filters.keywords는 질문에서 언급된 중요한 키워드들을 배열로 추출하세요.
키워드가 있으면 하이브리드 검색(키워드 + 의미 기반)을 사용하여 더 정확한 결과를 얻을 수 있습니다.
예: "작년 1월 남편 월급" → ["남편", "월급"]
예: "식비 지출" → ["식비"]
예: "토익학원 비용" → ["토익", "학원"]
예: "배우자 급여" → ["배우자", "급여"] (의미 기반 검색으로 "남편 월급"도 매칭 가능)

`)

	b.WriteString("질문에서 언급된 날짜 정보 (이 정보를 반드시 사용하세요):\n")
	fmt.Fprintf(&b, "- 추출된 날짜: %s\n", describeReference(ref))
	fmt.Fprintf(&b, "- 비교 날짜: %s\n\n", describeComparison(cmp))

	b.WriteString("중요: \n")
	b.WriteString("1. 추출된 날짜 정보가 있으면 반드시 date_info에 반영하세요.\n")
	fmt.Fprintf(&b, "   예: 추출된 날짜가 %d년 1월이면 date_info는 {\"year\": %d, \"month\": 1}이어야 합니다.\n", y-1, y-1)
	fmt.Fprintf(&b, "2. \"작년\"이라는 표현이 있으면 %d년으로 해석하세요.\n", y-1)
	fmt.Fprintf(&b, "3. 현재 년도는 %d년입니다.\n\n", y)
	b.WriteString("JSON만 반환하세요.")
	return b.String()
}

func optimizePrompt(question string, now time.Time, period string, summary []string, basic string) string {
	y := now.Year()
	if period == "" {
		period = "미지정"
	}
	data := noneLabel
	if len(summary) > 0 {
		data = strings.Join(summary, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "사용자 질문: %s\n\n", question)
	fmt.Fprintf(&b, "현재 년도: %d년\n", y)
	fmt.Fprintf(&b, "- '재작년'은 %d년을 의미합니다\n", y-2)
	fmt.Fprintf(&b, "- '작년'은 %d년을 의미합니다\n\n", y-1)
	fmt.Fprintf(&b, "조회 기간: %s\n", period)
	fmt.Fprintf(&b, "조회된 데이터: %s\n\n", data)
	fmt.Fprintf(&b, "기본 컨텍스트:\n%s\n\n", basic)
	b.WriteString("위 컨텍스트를 사용자 질문에 최적화하여 재구성하세요:\n\n")
	b.WriteString("1. 질문과 직접 관련된 정보만 포함하세요\n")
	fmt.Fprintf(&b, "2. 날짜 정보가 정확한지 확인하세요 (예: \"재작년\"은 %d년, \"작년\"은 %d년)\n", y-2, y-1)
	b.WriteString("3. 질문에서 요청한 특정 정보(예: \"남편 월급\")를 강조하세요\n")
	b.WriteString("4. 불필요한 정보는 제거하거나 간소화하세요\n")
	b.WriteString("5. 거래 내역의 description 필드를 특히 주의 깊게 확인하세요\n\n")
	b.WriteString("최적화된 컨텍스트만 반환하세요. 기존 형식(=== 섹션 ===)을 유지하되, 내용을 질문에 맞게 조정하세요.")
	return b.String()
}

func responseSystemPrompt(now time.Time) string {
	y := now.Year()
	var b strings.Builder
	b.WriteString("당신은 AI 가계부 어시스턴트입니다. 사용자의 가계부 데이터를 분석하고 질문에 답변하는 역할을 합니다.\n\n")
	b.WriteString("중요: 현재 년도 정보\n")
	fmt.Fprintf(&b, "- 현재 년도: %d년\n", y)
	fmt.Fprintf(&b, "- 사용자가 \"재작년\"이라고 하면 %d년을 의미합니다\n", y-2)
	fmt.Fprintf(&b, "- 사용자가 \"재작년 1월\"이라고 하면 %d년 1월을 의미합니다\n", y-2)
	fmt.Fprintf(&b, "- 사용자가 \"작년\"이라고 하면 %d년을 의미합니다\n", y-1)
	fmt.Fprintf(&b, "- 사용자가 \"작년 1월\"이라고 하면 %d년 1월을 의미합니다\n\n", y-1)
	b.WriteString(`주요 기능:
1. 거래 내역 요약 및 분석
2. 지출 패턴 분석
3. 통계 데이터 해석
4. 가계부 관리 조언 제공
5. 카테고리별 지출 분석

응답 시 다음 사항을 지켜주세요:
- 한국어로 친절하고 명확하게 답변
- 데이터를 기반으로 구체적인 수치를 제시
- 필요시 거래 내역이나 통계를 참조하여 설명
- 실용적이고 도움이 되는 조언 제공
- 사용자가 이해하기 쉽게 설명
- 컨텍스트에 제공된 데이터를 정확히 참조하여 답변
- 거래 내역의 description 필드를 주의 깊게 확인 (예: "남편 월급", "아내 월급" 등)

중요:
- 컨텍스트에 제공된 거래 내역을 꼼꼼히 확인하세요
- description 필드에 질문과 관련된 키워드가 있는지 확인하세요
- 통계가 0원이어도 거래 내역에 데이터가 있을 수 있습니다
- 컨텍스트에 표시된 날짜 정보를 정확히 참조하세요
`)
	fmt.Fprintf(&b, "- \"작년\"이라는 표현이 사용된 경우, 실제 년도(%d년)를 명시하여 답변하세요\n\n", y-1)
	b.WriteString("가계부 데이터는 아래 컨텍스트에 포함되어 있습니다.")
	return b.String()
}

func responseUserPrompt(now time.Time, question, context string) string {
	y := now.Year()
	var b strings.Builder
	fmt.Fprintf(&b, "=== 가계부 데이터 컨텍스트 ===\n%s\n=== 컨텍스트 끝 ===\n\n", context)
	fmt.Fprintf(&b, "사용자 질문: %s\n\n", question)
	b.WriteString("위의 가계부 데이터를 참고하여 사용자의 질문에 답변해주세요.\n\n")
	b.WriteString("중요 지시사항:\n")
	b.WriteString("1. 컨텍스트에 표시된 조회 기간을 정확히 참조하세요\n")
	b.WriteString("2. 거래 내역의 description 필드를 특히 주의 깊게 확인하세요\n")
	fmt.Fprintf(&b, "3. \"재작년\"이라는 표현이 사용된 경우, 실제 년도(%d년)를 명시하여 답변하세요\n", y-2)
	fmt.Fprintf(&b, "4. \"작년\"이라는 표현이 사용된 경우, 실제 년도(%d년)를 명시하여 답변하세요\n", y-1)
	b.WriteString("5. 컨텍스트에 거래 내역이 포함되어 있다면, 그 정보를 바탕으로 정확한 답변을 제공하세요\n")
	b.WriteString("6. 데이터가 없는 경우에만 \"데이터가 없습니다\"라고 답변하세요\n")
	fmt.Fprintf(&b, "7. 컨텍스트의 날짜 정보가 질문과 일치하는지 확인하세요 (예: \"재작년\" 질문에 %d년 데이터가 있어야 함)", y-2)
	return b.String()
}
