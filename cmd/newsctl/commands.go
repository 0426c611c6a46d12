package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	articledomain "github.com/AveryLor/BiasBreaker-sub000/internal/article/domain"
	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/merger"
	"github.com/AveryLor/BiasBreaker-sub000/internal/client/portal"

	"github.com/spf13/cobra"
)

var (
	flagEmail    string
	flagName     string
	flagPassword string
	flagReopen   int
	flagFilter   string
)

func password() (string, error) {
	if flagPassword != "" {
		return flagPassword, nil
	}
	if v := os.Getenv("NEWSCTL_PASSWORD"); v != "" {
		return v, nil
	}
	return "", errors.New("password required: pass --password or set NEWSCTL_PASSWORD")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := password()
		if err != nil {
			return err
		}
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			user, err := p.Login(ctx, flagEmail, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", displayUser(user))
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := password()
		if err != nil {
			return err
		}
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			if _, err := p.Register(ctx, flagEmail, flagName, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registration successful! Please sign in with your new account.")
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the persisted token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			if err := p.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			user, err := p.Whoami(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), displayUser(user))
			return nil
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open [path]",
	Short: "Open a portal page, signing the view in first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/dashboard"
		if len(args) == 1 {
			path = args[0]
		}
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			p.Start(ctx)
			state := p.Resolve(ctx, path)
			out := cmd.OutOrStdout()
			if state.Status != merger.Authenticated {
				for _, loc := range p.Redirects() {
					fmt.Fprintf(out, "Redirect: %s\n", loc)
				}
				return errors.New("not signed in")
			}

			page, err := p.Open(ctx, path)
			if err != nil {
				return err
			}
			if page.Location != "" {
				fmt.Fprintf(out, "Redirect: %s\n", page.Location)
				return nil
			}
			return writeJSON(out, page.Body)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			entries, err := p.History(ctx)
			if err != nil {
				return err
			}
			entries = authdomain.FilterHistory(flagFilter, entries)
			out := cmd.OutOrStdout()
			if flagReopen > 0 {
				query, err := pick(entries, flagReopen)
				if err != nil {
					return err
				}
				result, err := p.Search(ctx, query)
				if err != nil {
					return err
				}
				printResult(out, result)
				return nil
			}
			printHistory(out, entries)
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <topic>",
	Short: "Search the news for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPortal(cmd, func(ctx context.Context, p *portal.Portal) error {
			result, err := p.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&flagEmail, "email", "", "account email")
		c.Flags().StringVar(&flagPassword, "password", "", "account password")
		_ = c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&flagName, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("name")
	historyCmd.Flags().IntVar(&flagReopen, "reopen", 0, "re-run the Nth query in the list")
	historyCmd.Flags().StringVar(&flagFilter, "filter", "", "only show queries matching this text")
}

func displayUser(u *authdomain.Identity) string {
	if u == nil {
		return "unknown user"
	}
	if u.Email != "" && u.DisplayName() != u.Email {
		return fmt.Sprintf("%s <%s>", u.DisplayName(), u.Email)
	}
	return u.DisplayName()
}

func pick(entries []authdomain.QueryHistoryEntry, n int) (string, error) {
	if n < 1 || n > len(entries) {
		return "", fmt.Errorf("no query #%d (history has %d)", n, len(entries))
	}
	return entries[n-1].Query, nil
}

func printHistory(w io.Writer, entries []authdomain.QueryHistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No searches yet.")
		return
	}
	for i, e := range entries {
		if e.Timestamp != "" {
			fmt.Fprintf(w, "%3d. %s  (%s)\n", i+1, e.Query, e.Timestamp)
			continue
		}
		fmt.Fprintf(w, "%3d. %s\n", i+1, e.Query)
	}
}

func printResult(w io.Writer, r *articledomain.SearchResult) {
	if r.Merged != nil {
		fmt.Fprintf(w, "== %s ==\n%s\n", r.Merged.Title, r.Merged.Summary)
		if len(r.Merged.SourcesConsidered) > 0 {
			fmt.Fprintf(w, "Sources: %s\n", strings.Join(r.Merged.SourcesConsidered, ", "))
		}
		fmt.Fprintln(w)
	}
	if len(r.Articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return
	}
	for _, a := range r.Articles {
		fmt.Fprintf(w, "[%s] %s\n  %s | %s\n  %s\n", a.Perspective, a.Title, a.Source, a.Date, a.Excerpt)
	}
}

func writeJSON(w io.Writer, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = w.Write(raw)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
