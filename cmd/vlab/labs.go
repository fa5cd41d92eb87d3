package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

var (
	labFileFlag     string
	labTitleFlag    string
	labDescFlag     string
	labExpectedFlag string
)

var labsCmd = &cobra.Command{
	Use:     "labs",
	Aliases: []string{"lab", "l"},
	Short:   "Manage lab exercises",
}

var labsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lab exercises",
	RunE:  runLabsList,
}

var labsShowCmd = &cobra.Command{
	Use:   "show <lab-id>",
	Short: "Show a lab exercise",
	Args:  cobra.ExactArgs(1),
	RunE:  runLabsShow,
}

var labsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add lab exercises from flags or a YAML file",
	Long: `Add a lab exercise. With -f, every lab in the YAML file is added:

  labs:
    - title: Basic Python
      description: Print statements and variables
      expected_output: Hello World

A file holding a single lab mapping is accepted too.`,
	RunE: runLabsAdd,
}

func init() {
	rootCmd.AddCommand(labsCmd)
	labsCmd.AddCommand(labsListCmd, labsShowCmd, labsAddCmd)

	labsAddCmd.Flags().StringVarP(&labFileFlag, "file", "f", "", "YAML file of lab definitions")
	labsAddCmd.Flags().StringVar(&labTitleFlag, "title", "", "Lab title")
	labsAddCmd.Flags().StringVar(&labDescFlag, "description", "", "Lab description")
	labsAddCmd.Flags().StringVar(&labExpectedFlag, "expected", "", "Expected output")
}

// labFile is the on-disk YAML format for lab definitions.
type labFile struct {
	Labs []storage.LabExercise `yaml:"labs"`
}

// loadLabFile reads lab definitions from a YAML file.
func loadLabFile(path string) ([]storage.LabExercise, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lab file: %w", err)
	}

	var f labFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing lab file: %w", err)
	}
	if len(f.Labs) > 0 {
		return f.Labs, nil
	}

	var single storage.LabExercise
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing lab file: %w", err)
	}
	if single.Title == "" {
		return nil, fmt.Errorf("lab file %s: no labs defined", path)
	}
	return []storage.LabExercise{single}, nil
}

func runLabsList(cmd *cobra.Command, args []string) error {
	svc, done, err := openService(context.Background())
	if err != nil {
		return err
	}
	defer done()

	labs, err := svc.Labs(context.Background())
	if err != nil {
		return err
	}
	if len(labs) == 0 {
		fmt.Println("No labs found.")
		return nil
	}

	fmt.Printf("%-6s %-30s %s\n", "ID", "TITLE", "DESCRIPTION")
	fmt.Println(strings.Repeat("─", 80))
	for _, l := range labs {
		fmt.Printf("%-6d %-30s %s\n", l.ID, truncate(l.Title, 28), truncate(l.Description, 40))
	}
	return nil
}

func runLabsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid lab id %q", args[0])
	}

	svc, done, err := openService(context.Background())
	if err != nil {
		return err
	}
	defer done()

	l, err := svc.Lab(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Lab:      %d\n", l.ID)
	fmt.Printf("Title:    %s\n", l.Title)
	fmt.Printf("About:    %s\n", l.Description)
	fmt.Printf("Expected:\n%s\n", l.ExpectedOutput)
	return nil
}

func runLabsAdd(cmd *cobra.Command, args []string) error {
	var labs []storage.LabExercise
	if labFileFlag != "" {
		var err error
		if labs, err = loadLabFile(labFileFlag); err != nil {
			return err
		}
	} else {
		labs = []storage.LabExercise{{Title: labTitleFlag, Description: labDescFlag, ExpectedOutput: labExpectedFlag}}
	}

	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	for i := range labs {
		l := labs[i]
		l.ID = 0
		if err := svc.CreateLab(ctx, &l); err != nil {
			return err
		}
		fmt.Printf("Added lab %d: %s\n", l.ID, l.Title)
	}
	return nil
}
