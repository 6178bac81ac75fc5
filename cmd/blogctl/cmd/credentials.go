package cmd

import (
	"errors"
	"time"

	"github.com/oriys/blogsmith/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an authenticated gateway",
	Long: `使用与网关相同的 HS256 密钥签发 Bearer 令牌。
密钥来自 --secret 或 BLOGSMITH_JWT_SECRET。`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate a gateway API key and its hash",
	Long: `生成新的 API Key。
原始密钥只输出一次；把哈希加入网关配置的 auth.api_key_hashes。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, hash, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		return NewPrinter(cmd.OutOrStdout()).PrintFields([]string{"api_key", "hash"}, map[string]string{
			"api_key": key,
			"hash":    hash,
		})
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "HS256 签名密钥（或 BLOGSMITH_JWT_SECRET）")
	tokenCmd.Flags().String("subject", "blogctl", "令牌的 sub")
	tokenCmd.Flags().Duration("ttl", time.Hour, "令牌有效期")
	viper.BindPFlag("jwt_secret", tokenCmd.Flags().Lookup("secret"))

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(apiKeyCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := viper.GetString("jwt_secret")
	if secret == "" {
		return errors.New("jwt secret is required (--secret or BLOGSMITH_JWT_SECRET)")
	}
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	tok, err := auth.NewTokenManager(secret, ttl).Issue(subject)
	if err != nil {
		return err
	}
	return NewPrinter(cmd.OutOrStdout()).PrintFields([]string{"token", "expires_at"}, map[string]string{
		"token":      tok,
		"expires_at": time.Now().Add(ttl).Local().Format(time.RFC3339),
	})
}
