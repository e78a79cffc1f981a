// Package regulation maps raw source document identifiers to official
// regulation titles for display in citations.
package regulation

import "strings"

// displayNames maps the raw PDF file name of each indexed regulation document
// to its official Korean title. The indexed corpus is fixed (K리그 and KBO
// regulation documents), so this is a static table rather than stored metadata.
var displayNames = map[string]string{
	"baseball_kbo_leagueregulations_2025.pdf": "2025 KBO 리그 규정",
	"baseball_kbo_officialbaseballrule_2025.pdf": "2025 공식야구규칙",
	"baseball_kbo_rule_2025.pdf":                 "2025 KBO 규약",
	"football_kleague_arbitration_2018.pdf":      "K리그 중재위원회 운영 규정",
	"football_kleague_articles_2018.pdf":         "K리그 정관",
	"football_kleague_cleanfinancial_2024.pdf":   "K리그 재정건전화 규정",
	"football_kleague_cleanfinancial2_2024.pdf":  "K리그 클럽 재정건전화 준수 세칙",
	"football_kleague_club_2018.pdf":             "K리그 제1장 클럽 규정",
	"football_kleague_clublicesing_2024.pdf":     "K리그 클럽 라이센싱 규정",
	"football_kleague_comissioner_2018.pdf":      "K리그 총재선거관리규정",
	"football_kleague_ethics_2021.pdf":           "K리그 윤리강령",
	"football_kleague_game_2018.pdf":             "K리그 제3장 경기",
	"football_kleague_marketing_2018.pdf":        "K리그 제5장 마케팅",
	"football_kleague_penalty_2018.pdf":          "K리그 제6장 상벌",
	"football_kleague_player_2018.pdf":           "K리그 제2장 선수",
	"football_kleague_proclubbteam_2021.pdf":     "K리그 프로클럽 B팀 운영 세칙",
	"football_kleague_stadium_2024.pdf":          "K리그 경기장 시설기준 가이드라인",
	"football_kleague_youthclubsystem_2018.pdf":  "K리그 유소년 클럽 시스템 운영 세칙",
}

// DisplayName resolves the official title for a raw source identifier.
// The identifier may be a full path; only the base file name is considered.
// Unknown documents fall back to the file name without its extension.
func DisplayName(raw string) string {
	base := raw
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if name, ok := displayNames[base]; ok {
		return name
	}
	return strings.TrimSuffix(base, ".pdf")
}

// Base returns the base file name of a raw source identifier.
func Base(raw string) string {
	if i := strings.LastIndexAny(raw, `/\`); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
