package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/cubist/internal/compiler"
	"github.com/roach88/cubist/internal/harness"
)

// ExplainOutput is the data of the explain command.
type ExplainOutput struct {
	Expression string   `json:"expression"`
	Parameters []string `json:"parameters,omitempty"`
	Plan       string   `json:"plan"`
}

func (o ExplainOutput) String() string {
	return o.Plan
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <query.yaml>",
		Short: "Print the compiled plan of a query",
		Long: `Compile a query file and print its calculation plan, one node per
line with its type and result style.

Example:
  cubist explain queries/top-items.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			s, err := harness.LoadScenario(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load query", err)
			}
			p, err := harness.Prepare(s, harness.WithLogger(rootOpts.Logger))
			if err != nil {
				if code := compiler.CodeOf(err); code != "" {
					_ = out.Error(code, err.Error(), nil, "")
				}
				return WrapExitError(ExitCommandError, "failed to prepare query", err)
			}

			data := ExplainOutput{
				Expression: p.Statement.Expression().String(),
				Plan:       p.Statement.Explain(),
			}
			for _, param := range p.Statement.Parameters() {
				data.Parameters = append(data.Parameters, param.Name+" "+param.Type.String())
			}
			if rootOpts.Format != "json" {
				_, err := cmd.OutOrStdout().Write([]byte(data.Plan))
				return err
			}
			return out.Success(data, "")
		},
	}
}
