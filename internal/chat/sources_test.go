package chat

import (
	"reflect"
	"strings"
	"testing"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
)

func TestAttribute(t *testing.T) {
	t.Parallel()

	chunks := []knowledge.Chunk{
		{Content: "제18조 (우선지명)", Source: "football_kleague_youthclubsystem_2018.pdf", Page: 4},
		{Content: "제18조 각주", Source: "football_kleague_youthclubsystem_2018.pdf", Page: 4},
		{Content: "제19조 (등록)", Source: "football_kleague_youthclubsystem_2018.pdf", Page: 5},
		{Content: "제40조 (벌칙)", Source: "data/football_kleague_penalty_2018.pdf", Page: 0},
	}

	got := Attribute(chunks, false, 4, 100)

	want := []Citation{
		{
			File:    "K리그 유소년 클럽 시스템 운영 세칙",
			RawFile: "football_kleague_youthclubsystem_2018.pdf",
			Page:    5,
			Preview: "제18조 (우선지명)",
		},
		{
			File:    "K리그 유소년 클럽 시스템 운영 세칙",
			RawFile: "football_kleague_youthclubsystem_2018.pdf",
			Page:    6,
			Preview: "제19조 (등록)",
		},
		{
			File:    "K리그 제6장 상벌",
			RawFile: "football_kleague_penalty_2018.pdf",
			Page:    1,
			Preview: "제40조 (벌칙)",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Attribute() = %+v, want %+v", got, want)
	}
}

func TestAttributeRefusedIsEmpty(t *testing.T) {
	t.Parallel()

	chunks := []knowledge.Chunk{
		{Content: "본문", Source: "baseball_kbo_rule_2025.pdf", Page: 1},
	}

	got := Attribute(chunks, true, 4, 100)
	if got == nil {
		t.Fatal("Attribute() = nil, want empty non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("Attribute() returned %d citations for a refused answer, want 0", len(got))
	}
}

func TestAttributeCapsAtMaxCitations(t *testing.T) {
	t.Parallel()

	var chunks []knowledge.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, knowledge.Chunk{
			Content: strings.Repeat("규", i+1),
			Source:  "baseball_kbo_rule_2025.pdf",
			Page:    i,
		})
	}

	got := Attribute(chunks, false, 4, 100)
	if len(got) != 4 {
		t.Errorf("Attribute() returned %d citations, want 4", len(got))
	}
	// First-seen order survives the cap.
	for i, c := range got {
		if c.Page != i+1 {
			t.Errorf("citation[%d].Page = %d, want %d", i, c.Page, i+1)
		}
	}
}

func TestAttributeDeterministic(t *testing.T) {
	t.Parallel()

	chunks := []knowledge.Chunk{
		{Content: "가", Source: "a.pdf", Page: 2},
		{Content: "나", Source: "b.pdf", Page: 0},
		{Content: "다", Source: "a.pdf", Page: 2},
	}

	first := Attribute(chunks, false, 4, 100)
	second := Attribute(chunks, false, 4, 100)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Attribute() not deterministic: %+v vs %+v", first, second)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"shorter than limit", "짧은 문장", 100, "짧은 문장"},
		{"exactly at limit", "하나둘셋", 3, "하나둘셋"},
		{"korean truncation", "유소년 클럽 시스템", 3, "유소년"},
		{"zero limit passes through", "내용", 0, "내용"},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateRunes(tt.s, tt.n); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
		})
	}
}

func TestTruncateRunesLongContent(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("규정", 100) // 200 runes
	got := truncateRunes(long, 100)
	if runeCount := len([]rune(got)); runeCount != 100 {
		t.Errorf("truncateRunes() returned %d runes, want 100", runeCount)
	}
	// Every byte sequence must still be a whole character.
	if !strings.HasPrefix(long, got) {
		t.Error("truncateRunes() result is not a prefix of the input")
	}
}
