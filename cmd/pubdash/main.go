package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var logger = log.New("pubdash")

var rootCmd = &cobra.Command{
	Use:   "pubdash",
	Short: "Analytics dashboard for a CMS admin",
	Long: `pubdash serves an analytics dashboard with a sessions chart, popular
pages and top referrers per site, read from its own visit log or a remote
reporting API.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pubdash version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pubdash %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("provider", "", "report provider: local or remote")
	rootCmd.PersistentFlags().String("sites-file", "", "YAML file listing the sites")
	rootCmd.PersistentFlags().String("database", "", "local visit log path")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("sites_file", rootCmd.PersistentFlags().Lookup("sites-file"))
	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("database"))

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	viper.SetEnvPrefix("PUBDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("provider", "local")
	viper.SetDefault("static_dir", "public")

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			logger.Fatalf("read config %s: %v", path, err)
		}
	}
}

func main() {
	logger.SetLevel(log.INFO)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
