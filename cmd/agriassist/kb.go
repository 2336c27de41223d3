package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/liliang-cn/agriassist/internal/catalog"
	"github.com/liliang-cn/agriassist/internal/config"
	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/repository"
	"github.com/liliang-cn/agriassist/internal/service"
	"github.com/spf13/cobra"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the offline knowledge base",
}

var kbImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import Q&A entries from a YAML file",
	Long: `Import Q&A entries into the knowledge base. Entries are keyed by
question; importing an existing question replaces its answer and keywords.`,
	Args: cobra.ExactArgs(1),
	RunE: runKBImport,
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the knowledge base answer for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKBSearch,
}

func openAdminService() (*service.AdminService, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	svc := service.NewAdminService(
		repository.NewSessionRepository(db),
		repository.NewUsageRepository(db),
		repository.NewKnowledgeRepository(db),
	)
	return svc, func() { db.Close() }, nil
}

func runKBImport(cmd *cobra.Command, args []string) error {
	entries, err := catalog.LoadKnowledge(args[0])
	if err != nil {
		return err
	}

	svc, closeDB, err := openAdminService()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := svc.ImportKnowledge(cmd.Context(), entries)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", n)
	return nil
}

func runKBSearch(cmd *cobra.Command, args []string) error {
	svc, closeDB, err := openAdminService()
	if err != nil {
		return err
	}
	defer closeDB()

	entry, err := svc.SearchKnowledge(cmd.Context(), strings.Join(args, " "))
	if errors.Is(err, domain.ErrNoKnowledgeMatch) {
		fmt.Fprintln(cmd.OutOrStdout(), service.NoAnswerMessage)
		return nil
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
