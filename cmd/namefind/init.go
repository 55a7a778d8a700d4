package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/namefind/internal/config"
	"github.com/jackzampolin/namefind/internal/home"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the namefind home directory and a default config",
	Long: `Create the namefind home directory with a models/ subdirectory and write
the default configuration to config.yaml.

An existing config file is left alone unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() && !initForce {
			fmt.Printf("config already exists: %s\n", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", h.ConfigPath())
		fmt.Printf("place model files in %s\n", h.ModelsPath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
