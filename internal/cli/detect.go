package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/page-translator/pkg/lang"
	"github.com/nerdneilsfield/page-translator/pkg/textfilter"
)

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <text>...",
		Short: "检测文本语言并判断是否需要翻译",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			code := lang.Detect(text)

			translate := "no"
			if textfilter.ShouldTranslate(text) {
				translate = "yes"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "language:  %s (%s)\n", code, code.Name())
			fmt.Fprintf(out, "translate: %s\n", translate)
			return nil
		},
	}
}
