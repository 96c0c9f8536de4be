package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "finsense"}

	root.AddCommand(serveCMD(), analyzeCMD())
	_ = root.Execute()
}
