package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/credentials"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/output"
	"github.com/zfogg/feedsync/pkg/prompter"
)

var (
	authIdentifier string
	authUsername   string
	authEmail      string
	authName       string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Sign in, sign up and manage the stored session",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email or username",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := prompter.Default()
		identifier := authIdentifier
		var err error
		if identifier == "" {
			if identifier, err = p.String("Email or username: "); err != nil {
				return err
			}
		}
		if identifier == "" {
			return errors.Validation("email", "is required")
		}
		password, err := p.Password("Password: ")
		if err != nil {
			return err
		}

		ctx, cancel := requestContext(cmd.Context())
		defer cancel()

		output.PrintInfo("Authenticating...")
		resp, err := api.Login(ctx, identifier, password)
		if err != nil {
			return err
		}
		return storeSession(resp)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := prompter.Default()
		req := api.SignupRequest{Email: authEmail, Username: authUsername, Name: authName}
		var err error
		if req.Email == "" {
			if req.Email, err = p.String("Email: "); err != nil {
				return err
			}
		}
		if req.Username == "" {
			if req.Username, err = p.String("Username: "); err != nil {
				return err
			}
		}
		if req.Email == "" || req.Username == "" {
			return errors.Validation("signup", "email and username are required")
		}
		if req.Password, err = p.Password("Password: "); err != nil {
			return err
		}
		confirm, err := p.Password("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != req.Password {
			return errors.Validation("password", "passwords do not match")
		}

		ctx, cancel := requestContext(cmd.Context())
		defer cancel()

		resp, err := api.Signup(ctx, req)
		if err != nil {
			return err
		}
		return storeSession(resp)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client.ClearAuthToken()
		if err := credentials.Delete(); err != nil {
			return err
		}
		output.PrintSuccess("Logged out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is logged in",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentials.Load()
		if err != nil {
			return err
		}
		if !creds.IsValid() {
			output.PrintWarning("Not logged in")
			return nil
		}
		output.PrintInfo("Logged in as @%s (%s)", creds.Username, creds.Viewer())
		if exp, err := credentials.ExpiresAt(creds.AccessToken); err == nil && !exp.IsZero() {
			output.PrintInfo("Session expires %s", exp.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func storeSession(resp *api.AuthResponse) error {
	user, err := entity.NewNormalizer("").User(resp.User)
	if err != nil {
		logger.Debug("Auth response had no usable user record", "error", err)
	}
	viewerID, err := credentials.ViewerID(resp.Token)
	if err != nil {
		viewerID = user.ID
	}
	if viewerID == "" {
		return fmt.Errorf("server returned a token without a user id")
	}

	creds := &credentials.Credentials{
		AccessToken: resp.Token,
		UserID:      viewerID,
		Username:    user.Username,
		Email:       user.Email,
		SavedAt:     time.Now(),
	}
	if err := credentials.Save(creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	client.SetAuthToken(resp.Token)

	output.PrintSuccess("Logged in as @%s", user.Username)
	return nil
}

func init() {
	loginCmd.Flags().StringVarP(&authIdentifier, "user", "u", "", "Email or username")
	signupCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	signupCmd.Flags().StringVar(&authUsername, "username", "", "Username")
	signupCmd.Flags().StringVar(&authName, "name", "", "Display name")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(signupCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

