package main

import (
	"github.com/n9te9/subgraph-proxy/server"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of the subgraph proxy",
	Run: func(cmd *cobra.Command, args []string) {
		println("subgraph-proxy v0.1.0")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a new subgraph proxy project",
	Run: func(cmd *cobra.Command, args []string) {
		if err := server.Init(); err != nil {
			panic(err)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the subgraph proxy server",
	Run: func(cmd *cobra.Command, args []string) {
		server.Run()
	},
}

func main() {
	rootCmd := cobra.Command{}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
