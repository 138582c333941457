package main

import (
	"fmt"

	"github.com/pavanmanishd/streamarena"
	"github.com/spf13/cobra"
)

const Version = `v0.1.0`

func root() *cobra.Command {
	var (
		version bool
	)
	cmd := &cobra.Command{
		Use:   "spillbench",
		Short: "drive streams over a shared arena and report memory statistics",
		Run: func(cmd *cobra.Command, args []string) {
			if version {
				fmt.Println(Version)
				return
			}
			fmt.Println(`spillbench`, Version)
			fmt.Println(`page size`, streamarena.PageSize)
			fmt.Println(`first block`, streamarena.DefaultBlockQuantum)
			fmt.Println(`max block`, streamarena.DefaultMaxBlockSize)
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&version, `version`, `v`, false, `print version`)
	return cmd
}
