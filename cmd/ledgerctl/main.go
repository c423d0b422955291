package main

import (
	"os"

	"github.com/jmerrifield20/postledger/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	ledgerURL   string
	callerToken string
	cfgFile     string
	insecure    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "postledger CLI",
	Long: `ledgerctl talks to a ledgerd server.

It creates and reads posts, checks the ledger's hash chain, issues caller
tokens and exports the ledger to a compressed archive.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.postledger")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("postledger")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if ledgerURL == "" {
			ledgerURL = viper.GetString("ledger_url")
		}
		if ledgerURL == "" {
			ledgerURL = "http://localhost:8080"
		}
		if callerToken == "" {
			callerToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.postledger/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ledgerURL, "ledger", "", "ledgerd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&callerToken, "token", "", "caller token for write commands (env POSTLEDGER_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification (development only)")

	rootCmd.AddCommand(createCmd, getCmd, listCmd, countCmd, verifyCmd, tokenCmd, exportCmd, watchCmd, versionCmd)
}

// newClient builds an SDK client from the persistent flags.
func newClient() (*client.Client, error) {
	var opts []client.Option
	if callerToken != "" {
		opts = append(opts, client.WithBearerToken(callerToken))
	}
	if insecure {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	return client.New(ledgerURL, opts...)
}
