package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	testfixtures "github.com/kurakura967/go-docstore-testfixtures"
	"github.com/kurakura967/go-docstore-testfixtures/internal/store"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
)

// newClearCommand creates the 'docfixtures clear' command
func (a *app) newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection>...",
		Short: "Remove every document of the collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directives := make([]testfixtures.Directive, 0, len(args))
			for _, name := range args {
				directives = append(directives, testfixtures.Clear(name))
			}

			err := a.withOrchestrator(cmd.Context(), func(o *testfixtures.Orchestrator) error {
				return o.Run(directives, nil)
			})
			if err != nil {
				return err
			}

			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", name)
			}
			return nil
		},
	}
}

// newInitCommand creates the 'docfixtures init' command
func (a *app) newInitCommand() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "init <collection> <fixture-file>",
		Short: "Insert the documents of a fixture file into a collection",
		Long: `Insert the documents of a fixture file into a collection.

The collection is cleared first unless --keep is given.

Examples:
  docfixtures init users testdata/users.json
  docfixtures init --keep users more_users.yml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, file := args[0], args[1]

			directives := []testfixtures.Directive{testfixtures.InitFile(collection, file)}
			if !keep {
				directives = append(directives, testfixtures.Clear(collection))
			}

			err := a.withOrchestrator(cmd.Context(), func(o *testfixtures.Orchestrator) error {
				return o.Run(directives, nil)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s from %s\n", collection, file)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the existing documents")

	return cmd
}

// newCheckCommand creates the 'docfixtures check' command
func (a *app) newCheckCommand() *cobra.Command {
	var ignored []string
	var compareAll bool

	cmd := &cobra.Command{
		Use:   "check <collection> <fixture-file>",
		Short: "Verify a collection holds exactly the documents of a fixture file",
		Long: `Verify a collection holds exactly the documents of a fixture file.

The "_id" field is ignored unless --ignore or --all-fields is given.

Examples:
  docfixtures check users testdata/users_expected.json
  docfixtures check users expected.yml --ignore _id --ignore createdAt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, file := args[0], args[1]
			out := cmd.OutOrStdout()

			if compareAll {
				ignored = []string{}
			}

			err := a.withOrchestrator(cmd.Context(), func(o *testfixtures.Orchestrator) error {
				return o.Run([]testfixtures.Directive{testfixtures.CheckFile(collection, file, ignored...)}, nil)
			})

			// Only assertion failures are reported as FAIL; anything else is an
			// error running the check.
			if err != nil && !errors.Is(err, testfixtures.ErrAssertion) {
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "%s %s: %v\n", failLabel("FAIL"), collection, errors.Unwrap(err))
				return fmt.Errorf("collection %s does not match %s", collection, file)
			}

			fmt.Fprintf(out, "%s %s\n", passLabel("PASS"), collection)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ignored, "ignore", nil, "Field excluded from the comparison (repeatable)")
	cmd.Flags().BoolVar(&compareAll, "all-fields", false, "Compare every field, including _id")
	cmd.MarkFlagsMutuallyExclusive("ignore", "all-fields")

	return cmd
}

// newLoadCommand creates the 'docfixtures load' command
func (a *app) newLoadCommand() *cobra.Command {
	var dir string
	var verify bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a fixtures directory, one sub-directory per collection",
		Long: `Load a fixtures directory, one sub-directory per collection.

Every collection is cleared and seeded with the JSON and YAML files of its
sub-directory. Elasticsearch indexes are created from _mapping.json and
_settings.json when present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Fixtures.Directory
			}
			if dir == "" {
				return errors.New("no fixtures directory: use --dir or set fixtures.directory")
			}

			gateway, closeStore, err := store.Open(cmd.Context(), a.cfg)
			if err != nil {
				return fmt.Errorf("open %s store: %w", a.cfg.Backend, err)
			}
			defer closeStore()

			loader, err := testfixtures.NewLoader(gateway,
				testfixtures.Directory(dir),
				testfixtures.WithContext(cmd.Context()),
				testfixtures.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			if err := loader.Load(); err != nil {
				return err
			}
			if verify {
				if err := loader.Check(); err != nil {
					return err
				}
			}

			for _, name := range loader.Collections() {
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Fixtures directory (defaults to fixtures.directory)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the collections after loading")

	return cmd
}
