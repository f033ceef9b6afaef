package main

import (
	"github.com/kiddiebus/kiddiebus-client/internal/utils"
	"github.com/kiddiebus/kiddiebus-client/users"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.session().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.out.Success("Signed in as %s (%s)", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginGoogleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login-google <credential>",
		Short: "Sign in with a Google Identity Services credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := a.verifierOptions(cmd.Context())
			if err != nil {
				return err
			}
			u, err := a.session(options...).LoginWithExternalIdentity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.out.Success("Signed in as %s (%s)", u.Email, u.Role)
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		reg  users.Registration
		role string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := users.ParseRole(role)
			if err != nil {
				return err
			}
			reg.Role = r
			u, err := a.session().Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			a.out.Success("Registered %s as %s", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "account password")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&role, "role", string(users.RoleParent), "parent, operator or admin")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a.session().Logout()
			a.out.Success("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			a.printUser(a.session().Current().User)
			return nil
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	var firstName, lastName, phone, password string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the signed in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			var update users.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("first-name") {
				update.FirstName = utils.Ptr(firstName)
			}
			if flags.Changed("last-name") {
				update.LastName = utils.Ptr(lastName)
			}
			if flags.Changed("phone") {
				update.Phone = utils.Ptr(phone)
			}
			if flags.Changed("password") {
				update.Password = utils.Ptr(password)
			}
			if update.Empty() {
				a.printUser(a.session().Current().User)
				return nil
			}
			u, err := a.session().UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			a.out.Success("Profile updated")
			a.printUser(u)
			return nil
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "new first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "new last name")
	cmd.Flags().StringVar(&phone, "phone", "", "new contact phone")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func (a *app) printUser(u *users.User) {
	if u == nil {
		return
	}
	a.out.Field("Name", u.FullName())
	a.out.Field("Email", u.Email)
	a.out.Field("Role", u.Role.String())
	if u.Phone != "" {
		a.out.Field("Phone", u.Phone)
	}
}
