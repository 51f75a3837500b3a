package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reqcraft/internal/domain"
)

type generateOptions struct {
	product          string
	users            string
	requirements     string
	requirementsFile string
	showRequirements bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test cases once and print them",
		Long: `Generate test cases for one requirements document and print them to stdout.

The document is read from --requirements (text or an http(s) URL), from
--requirements-file, or from stdin when --requirements-file is "-".`,
		Example: `  reqcraft generate --product "Notes app" --users "Students" \
    --requirements https://example.com/prd

  cat prd.md | reqcraft generate --requirements-file - --show-requirements`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), root, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.product, "product", "", "brief product description")
	cmd.Flags().StringVar(&opts.users, "users", "", "who the product users are")
	cmd.Flags().StringVar(&opts.requirements, "requirements", "", "requirements text or URL")
	cmd.Flags().StringVar(&opts.requirementsFile, "requirements-file", "", "read requirements from a file (- for stdin)")
	cmd.Flags().BoolVar(&opts.showRequirements, "show-requirements", false, "also print the intermediate requirements")
	cmd.MarkFlagsMutuallyExclusive("requirements", "requirements-file")
	cmd.MarkFlagsOneRequired("requirements", "requirements-file")

	return cmd
}

func runGenerate(
	ctx context.Context,
	root *rootOptions,
	opts *generateOptions,
	stdin io.Reader,
	stdout io.Writer,
) error {
	requirements, err := opts.readRequirements(stdin)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, root.log)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.pipeline.Run(ctx, domain.PipelineInput{
		ProductDescription: opts.product,
		UserDescription:    opts.users,
		Requirements:       requirements,
	})
	if err != nil {
		return fmt.Errorf("generate test cases: %w", err)
	}

	return writeResult(stdout, res, opts.showRequirements)
}

func (o *generateOptions) readRequirements(stdin io.Reader) (string, error) {
	path := strings.TrimSpace(o.requirementsFile)
	if path == "" {
		return o.requirements, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read requirements: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("requirements file is empty")
	}

	return string(data), nil
}

func writeResult(w io.Writer, res *domain.PipelineResult, showRequirements bool) error {
	var b strings.Builder

	if showRequirements {
		b.WriteString("# Requirements\n\n")
		b.WriteString(res.Requirements)
		b.WriteString("\n\n# Test cases\n\n")
	}
	b.WriteString(res.TestCases)
	b.WriteString("\n")

	if skipped := len(res.SkippedRequirements) + len(res.SkippedTestCases); skipped > 0 {
		fmt.Fprintf(&b, "\n(%d chunk(s) failed and were left out)\n", skipped)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}
