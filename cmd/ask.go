package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/askdb/internal/pipeline"
)

var (
	askUserID     string
	askPolicyPath string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Generate SQL for a natural-language question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		policy := env.Policy
		if askPolicyPath != "" {
			policy, err = pipeline.LoadPolicy(askPolicyPath)
			if err != nil {
				return eris.Wrap(err, "load stage policy")
			}
		}

		result, err := env.Pipeline.Generate(cmd.Context(), question, askUserID, policy)
		if err != nil {
			return eris.Wrap(err, "generate")
		}

		if result.Cancelled {
			zap.L().Info("question rejected", zap.String("reason", result.CancelReason))
			fmt.Printf("Question rejected: %s\n", result.CancelReason)
			return nil
		}
		if result.SQL == "" {
			fmt.Println(result.Message)
			return nil
		}

		fmt.Println(result.SQL)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "default_user", "user identity for status tracking")
	askCmd.Flags().StringVar(&askPolicyPath, "policy", "", "stage model policy YAML, overrides config")
	rootCmd.AddCommand(askCmd)
}
