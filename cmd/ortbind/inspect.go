package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the model's declared input and output names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			b, closeModel, err := openModel(cmd.Context(), cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = closeModel() }()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"path":    b.Path(),
					"inputs":  b.Inputs(),
					"outputs": b.Outputs(),
				})
			}

			fmt.Fprintf(out, "model: %s\n", b.Path())
			fmt.Fprintln(out, "inputs:")
			for _, s := range b.Inputs() {
				fmt.Fprintf(out, "  %s\n", describeSpec(s))
			}
			fmt.Fprintln(out, "outputs:")
			for _, s := range b.Outputs() {
				fmt.Fprintf(out, "  %s\n", describeSpec(s))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// describeSpec renders "name" or, when the engine reports them,
// "name dtype[dims]".
func describeSpec(s binder.TensorSpec) string {
	if s.DType == "" && s.Shape == nil {
		return s.Name
	}
	return fmt.Sprintf("%s %s[%s]", s.Name, s.DType, strings.Join(s.Shape, " "))
}
