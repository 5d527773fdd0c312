package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/session"
)

var (
	accountEmail string
	accountName  string
)

var signinCmd = &cobra.Command{
	Use:     "signin <user-id>",
	GroupID: "account",
	Short:   "Sign in to an existing account",
	Long: `Sign in as an account that already exists remotely.

Signing in as the account that used this device last keeps the local tasks.
Signing in as any other account replaces the local tasks with the remote ones.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			res, err := rt.app.SignIn(ctx, session.Account{ID: args[0], Email: accountEmail, Name: accountName}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%s Signed in as %s (%s)\n", renderPass("✓"), renderLabel(res.User.Email), res.Outcome)
			if res.Outcome == session.OutcomeCold {
				fmt.Printf("  Imported %d task(s)\n", res.Tasks)
			}
			return nil
		})
	},
}

var signupCmd = &cobra.Command{
	Use:     "signup <user-id>",
	GroupID: "account",
	Short:   "Set up a new account on this device",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			res, err := rt.app.SignUp(ctx, session.Account{ID: args[0], Email: accountEmail, Name: accountName}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%s Created account %s\n", renderPass("✓"), renderLabel(res.User.Email))
			fmt.Println("  Next: todosync profile --name <name> --occupation <occupation>")
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Sign out and cancel pending uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			var msg string
			if err := rt.app.LogOut(ctx, func(ok bool, m string) { msg = m }); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", renderPass("✓"), msg)
			return nil
		})
	},
}

var (
	profileName       string
	profileOccupation string
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "account",
	Short:   "Show or update your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			user, err := rt.app.Profile(ctx)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("name") || cmd.Flags().Changed("occupation") {
				name, occupation := user.Name, user.Occupation
				if cmd.Flags().Changed("name") {
					name = profileName
				}
				if cmd.Flags().Changed("occupation") {
					occupation = profileOccupation
				}
				if user.Name == "" && user.Occupation == "" {
					err = rt.app.SetUpNewUser(ctx, name, occupation, nil)
				} else {
					err = rt.app.UpdateUserDetails(ctx, name, occupation, nil)
				}
				if err != nil {
					return err
				}
				if user, err = rt.app.Profile(ctx); err != nil {
					return err
				}
				fmt.Printf("%s Profile updated\n", renderPass("✓"))
			}

			fmt.Printf("%s %s\n", renderLabel("User:      "), user.ID)
			fmt.Printf("%s %s\n", renderLabel("Email:     "), user.Email)
			fmt.Printf("%s %s\n", renderLabel("Name:      "), user.Name)
			fmt.Printf("%s %s\n", renderLabel("Occupation:"), user.Occupation)
			fmt.Printf("%s %s\n", renderLabel("Avatar:    "), user.AvatarFilePath)
			return nil
		})
	},
}

var avatarCmd = &cobra.Command{
	Use:     "avatar <image>",
	GroupID: "account",
	Short:   "Change your profile picture",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			var msg string
			if err := rt.app.ChangeUserAvatar(ctx, args[0], func(ok bool, m string) { msg = m }); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", renderPass("✓"), msg)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{signinCmd, signupCmd} {
		c.Flags().StringVar(&accountEmail, "email", "", "account email (required)")
		c.Flags().StringVar(&accountName, "name", "", "display name")
		_ = c.MarkFlagRequired("email")
	}
	profileCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileCmd.Flags().StringVar(&profileOccupation, "occupation", "", "occupation")

	rootCmd.AddCommand(signinCmd, signupCmd, logoutCmd, profileCmd, avatarCmd)
}
