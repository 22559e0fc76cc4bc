package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Partho99/devops-learner/internal/coderun"
	"github.com/Partho99/devops-learner/internal/config"
)

func newRunCmd() *cobra.Command {
	var (
		language string
		file     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a code snippet through the code execution backend",
		Long: `Sends source code to the execution backend and prints the result.

Reads the code from --file, or stdin when --file is "-" or empty. Without
any code the language's starter snippet is run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readCode(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if code == "" {
				code = coderun.DefaultSnippet(language)
			}
			client := coderun.NewClient(config.Cfg.RunURL, config.Cfg.RunTimeoutDuration())
			return runSnippet(cmd, client, coderun.Request{Language: language, Code: code})
		},
	}
	cmd.Flags().StringVarP(&language, "language", "L", "javascript", "snippet language")
	cmd.Flags().StringVarP(&file, "file", "f", "", `source file ("-" for stdin)`)
	return cmd
}

func readCode(file string, stdin io.Reader) (string, error) {
	if file == "" {
		return "", nil
	}
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return string(data), nil
}

func runSnippet(cmd *cobra.Command, client *coderun.Client, req coderun.Request) error {
	resp, err := client.Run(cmd.Context(), req)
	if errors.Is(err, coderun.ErrUnsupportedLanguage) {
		return err
	}
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), coderun.FailureText(err))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
	return nil
}
