package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/pkg/errors"
	"github.com/pkgforge/soar/pkg/fsutil"
	"github.com/pkgforge/soar/pkg/metadata"
)

// NewJSON2DBCmd creates the json2db command.
func NewJSON2DBCmd() *cobra.Command {
	var (
		repoName string
		etag     string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "json2db <input.json> <output.db>",
		Short: "Convert repository JSON metadata into a metadata database",
		Long: `Convert a JSON array of package records into a metadata database that can be
served as a repository snapshot.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid input file: %w", err)
			}
			output, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("invalid output file: %w", err)
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("output file %s already exists (use --force to overwrite)", output)
			}
			if repoName == "" {
				repoName = "local"
			}

			data, err := os.ReadFile(input)
			if err != nil {
				return errors.Filesystem(err, "read %s", input)
			}
			if err := fsutil.EnsureFileDir(output); err != nil {
				return errors.Filesystem(err, "create %s", filepath.Dir(output))
			}
			n, err := metadata.ImportJSON(cmd.Context(), data, output, repoName, etag)
			if err != nil {
				return fmt.Errorf("failed to convert metadata: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d packages to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Repository name stored in the database")
	cmd.Flags().StringVar(&etag, "etag", "", "ETag stored in the database")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite output file if it exists")

	cmd.Example = `  soar json2db ./bincache.json ./bincache.db
  soar json2db --repo bincache --force ./bincache.json ./bincache.db`

	return cmd
}
