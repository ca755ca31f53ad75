package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/leadsauth/internal/client/guard"
	"github.com/iudanet/leadsauth/internal/client/storage"
	"github.com/iudanet/leadsauth/pkg/api"
)

type loginFunc func(ctx context.Context, email, password string) (*api.UserInfo, error)

func (c *Cli) newRegisterCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runCredentials(cmd.Context(), "Register", email, c.auth.Register)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if empty)")
	return cmd
}

func (c *Cli) newLoginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runCredentials(cmd.Context(), "Login", email, c.auth.Login)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if empty)")
	return cmd
}

func (c *Cli) newAdminLoginCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "admin-login",
		Short: "Sign in to the admin area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runCredentials(cmd.Context(), "Admin login", email, c.auth.AdminLogin)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email (prompted if empty)")
	return cmd
}

func (c *Cli) runCredentials(ctx context.Context, title, email string, fn loginFunc) error {
	c.io.Printf("=== %s ===\n", title)

	if email == "" {
		var err error
		email, err = c.io.ReadInput("Email: ")
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	user, err := fn(ctx, email, password)
	if err != nil {
		return err
	}

	c.io.Printf("Signed in as %s (%s)\n", user.Email, role(user.IsAdmin))
	return nil
}

func (c *Cli) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out on all devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.state.Snapshot().Authenticated {
				c.io.Println("Not signed in")
				return nil
			}
			if err := c.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			c.io.Println("Signed out")
			return nil
		},
	}
}

func (c *Cli) newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.auth.Whoami(cmd.Context())
			if err != nil {
				return err
			}
			c.io.Printf("ID:    %s\n", user.ID)
			c.io.Printf("Email: %s\n", user.Email)
			c.io.Printf("Role:  %s\n", role(user.IsAdmin))
			return nil
		},
	}
}

func (c *Cli) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := c.state.Snapshot()

			c.io.Printf("Server:        %s\n", c.opts.Server)
			if !snap.Authenticated {
				c.io.Println("Authenticated: no")
			} else {
				c.io.Println("Authenticated: yes")
				c.io.Printf("Role:          %s\n", role(snap.IsAdmin))
			}

			profile, err := c.auth.LastProfile(cmd.Context())
			switch {
			case errors.Is(err, storage.ErrProfileNotFound):
			case err != nil:
				return err
			default:
				c.io.Printf("Last user:     %s (confirmed %s)\n", profile.Email,
					time.Unix(profile.ConfirmedAt, 0).Format(time.RFC3339))
			}
			return nil
		},
	}
}

func (c *Cli) newVisitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "visit <path>",
		Short: "Check whether a page is reachable with the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			d, err := guard.Admit(c.state, args[0])
			if err != nil {
				return err
			}
			if d.Allow {
				c.io.Printf("allow %s (%s)\n", args[0], d.Kind)
				return nil
			}
			c.io.Printf("redirect %s -> %s (%s)\n", args[0], d.RedirectTo, d.Kind)
			return nil
		},
	}
}

func (c *Cli) newEventsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <user-id>",
		Short: "Show authentication events of a user (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := guard.Admit(c.state, "/admin/users/"+args[0])
			if err != nil {
				return err
			}
			if !d.Allow {
				return fmt.Errorf("admin session required, run admin-login first")
			}

			resp, err := c.api.UserEvents(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(resp.Events) == 0 {
				c.io.Println("No events")
				return nil
			}

			w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TIME\tTYPE\tIP\tUSER AGENT")
			for _, e := range resp.Events {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Type, e.IP, e.UserAgent)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	return cmd
}

func (c *Cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationOffline: "true"},
		Run: func(*cobra.Command, []string) {
			c.io.Printf("leadsauth client %s\n", c.version)
		},
	}
}

func role(isAdmin bool) string {
	if isAdmin {
		return "admin"
	}
	return "user"
}
