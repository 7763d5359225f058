// Command ragmesh runs the retrieval-augmented assistant: an HTTP server, a
// terminal chat and a document ingestion tool sharing one configuration.
package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/config"
)

var (
	storePath  string
	policyFile string
)

var rootCmd = &cobra.Command{
	Use:   "ragmesh",
	Short: "ragmesh - documents and web search behind one conversation",
	Long: `ragmesh answers questions from a local document index and live web search,
filters unsafe or off-topic queries and remembers each conversation.

Configuration is read from the environment (OPENAI_API_KEY, TAVILY_API_KEY,
RAGMESH_PROVIDER, ...). Flags override the matching variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Document index directory (overrides DOCUMENT_STORE_PATH)")
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "Policy YAML file (overrides POLICY_FILE)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.Retrieval.StorePath = storePath
	}
	if policyFile != "" {
		cfg.Policy.File = policyFile
	}
	return cfg, cfg.Validate()
}

func openMesh() (*ragmesh.RAGMesh, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ragmesh.New(cfg)
}
