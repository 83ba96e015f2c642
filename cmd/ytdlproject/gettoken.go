package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getTokenCmd = &cobra.Command{
	Use:   "get-token",
	Short: "Print the admin API token and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		store, err := openStore(env)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := store.GetUserByName("admin")
		if err != nil {
			return fmt.Errorf("looking up admin user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("admin user not found")
		}
		fmt.Println(user.APIToken)
		return nil
	},
}
