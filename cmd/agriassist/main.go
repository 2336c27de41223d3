package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agriassist",
	Short: "Rural insurance assistant backend",
	Long: `agriassist serves risk-based insurance recommendations and a chat
assistant that falls back from a hosted model to a local model to a
static knowledge base.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	kbCmd.AddCommand(kbImportCmd, kbSearchCmd)
	rootCmd.AddCommand(serveCmd, kbCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
