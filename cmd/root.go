// Package cmd contains the chaekcheck CLI commands.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teamcheckmate/chaekcheck/internal/config"
	"github.com/teamcheckmate/chaekcheck/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "chaekcheck",
	Short: "책첵 - K리그/KBO 규정 질의응답 에이전트",
	Long: `책첵(Chaek-Check)은 한국 프로스포츠 규정 전문 질의응답 에이전트입니다.
K리그와 KBO의 공식 규정 문서를 검색해 근거 조항과 함께 답변합니다.

serve 로 HTTP API 서버를 띄우거나, ask 로 터미널에서 바로 질문할 수 있습니다.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and installs the process-wide logger.
// Shared by all subcommands that touch the pipeline.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		JSON:      !cfg.DevMode,
		AddSource: false,
	})
	slog.SetDefault(logger)

	return cfg, nil
}
