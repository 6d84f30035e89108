package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/langstate"
)

func newLangCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang",
		Short: "查看或修改当前显示语言",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLanguage(cmd, func(ctx context.Context, store *langstate.Store) error {
				printLanguage(cmd, store)
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <zh|en>",
			Short: "设置当前显示语言",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				code, err := lang.Parse(args[0])
				if err != nil {
					return err
				}
				return withLanguage(cmd, func(ctx context.Context, store *langstate.Store) error {
					if err := store.Set(ctx, code); err != nil {
						return err
					}
					printLanguage(cmd, store)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "在中文和英文之间切换",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLanguage(cmd, func(ctx context.Context, store *langstate.Store) error {
					if _, err := store.Toggle(ctx); err != nil {
						return err
					}
					printLanguage(cmd, store)
					return nil
				})
			},
		},
	)

	return cmd
}

func withLanguage(cmd *cobra.Command, fn func(ctx context.Context, store *langstate.Store) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a.openLanguage(ctx))
}

func printLanguage(cmd *cobra.Command, store *langstate.Store) {
	code := store.Get()
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) [%s]\n", code, code.Name(), store.Origin())
}
