package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synapsegraph/synapse/internal/dependencies"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the health of optional external collaborators (Ollama, Qdrant)",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() {
	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}

	result := dependencies.Check(cfg)
	fmt.Print(dependencies.FormatDoctorReport(result, cfg))
}
