package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/atinyakov/CredKeeper/internal/domain"
	"github.com/atinyakov/CredKeeper/internal/keychain"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/spf13/cobra"
)

var (
	errCancelled = errors.New("cancelled")
	errNotFound  = errors.New("credentials not found")
)

// save persists the model and reports a locked secure store as an error.
func (a *app) save(cmd *cobra.Command) error {
	if !a.model.Save(cmd.Context()) {
		return errLocked
	}
	return nil
}

func (a *app) domain(id string) (*domain.Domain, error) {
	d := a.model.Domain(id)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrDomainNotFound, id)
	}
	return d, nil
}

// credType resolves a --type value; "" means the default type.
func (a *app) credType(id string) (models.CredentialType, error) {
	if id == "" {
		t, ok := a.model.DefaultCredentialType()
		if !ok {
			return nil, models.ErrUnknownType
		}
		return t, nil
	}
	t, ok := a.model.CredentialType(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownType, id)
	}
	return t, nil
}

func newDomainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List domains and their users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, d := range a.model.Domains() {
				fmt.Fprintf(out, "%s (%s)", d.Name(), d.ID())
				if !d.Removable() {
					fmt.Fprint(out, " [system]")
				}
				fmt.Fprintln(out)
				printUsers(out, d)
			}
			return nil
		},
	}
}

func printUsers(out io.Writer, d *domain.Domain) {
	def, defType := d.DefaultUsername(), d.DefaultType()
	for _, user := range d.Usernames() {
		for _, t := range d.CredentialTypes(user) {
			marker := " "
			if user == def && (defType == nil || defType.ID() == t.ID()) {
				marker = "*"
			}
			prompted := ""
			if d.RequiresPrompt(user, t) {
				prompted = " (prompted)"
			}
			fmt.Fprintf(out, "  %s %s [%s]%s\n", marker, user, t.ID(), prompted)
		}
	}
}

func newDomainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Add or remove domains",
	}

	var fixed bool
	add := &cobra.Command{
		Use:   "add <id> [name]",
		Short: "Add a domain",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 1 {
				name = args[1]
			}
			if a.model.AddDomain(args[0], name, !fixed) == nil {
				return fmt.Errorf("domain %q already exists", args[0])
			}
			return a.save(cmd)
		},
	}
	add.Flags().BoolVar(&fixed, "fixed", false, "the domain cannot be removed")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a domain and its credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.domain(args[0])
			if err != nil {
				return err
			}
			if !a.model.RemoveDomain(d) {
				return fmt.Errorf("domain %q cannot be removed", d.ID())
			}
			return a.save(cmd)
		},
	}

	cmd.AddCommand(add, rm)
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		typeID   string
		prompted bool
		props    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "add <domain> <user>",
		Short: "Store credentials for a user",
		Long: `Store credentials for a user of a domain.

Without --prop the secret is read from the terminal, or from stdin when it is
piped. With --prompted nothing is stored and the user is asked on every use.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.domain(args[0])
			if err != nil {
				return err
			}
			t, err := a.credType(typeID)
			if err != nil {
				return err
			}
			user := args[1]

			if prompted {
				a.model.AddPromptedCredentials(d, t, user)
				return a.save(cmd)
			}
			if len(props) == 0 {
				property := credtype.PropertyPass
				if t.ID() == credtype.TokenID {
					property = credtype.PropertyToken
				}
				secret, ok, err := a.console.ReadSecret(property + ": ")
				if err != nil {
					return err
				}
				if !ok || secret == "" {
					return errCancelled
				}
				props = map[string]string{property: secret}
			}
			a.model.AddCredentials(d, t, user, props)
			return a.save(cmd)
		},
	}
	cmd.Flags().StringVarP(&typeID, "type", "t", "", "credential type (default: the default type)")
	cmd.Flags().BoolVar(&prompted, "prompted", false, "ask for the secret on every use")
	cmd.Flags().StringToStringVar(&props, "prop", nil, "credential property key=value, repeatable")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var typeID string
	cmd := &cobra.Command{
		Use:   "rm <domain> <user>",
		Short: "Remove the credentials of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.domain(args[0])
			if err != nil {
				return err
			}
			t, err := a.credType(typeID)
			if err != nil {
				return err
			}
			if !d.UserTypeExists(args[1], t) {
				return fmt.Errorf("%w: %s [%s]", errNotFound, args[1], t.ID())
			}
			a.model.RemoveCredentials(d, t, args[1])
			return a.save(cmd)
		},
	}
	cmd.Flags().StringVarP(&typeID, "type", "t", "", "credential type (default: the default type)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var typeID string
	cmd := &cobra.Command{
		Use:   "get <domain> [user]",
		Short: "Print the credentials of a user",
		Long: `Print the credentials of a user, asking for them when they are not stored.
Without a user the domain default is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.domain(args[0])
			if err != nil {
				return err
			}
			user := d.DefaultUsername()
			if len(args) > 1 {
				user = args[1]
			}

			var t models.CredentialType
			switch {
			case typeID != "":
				if t, err = a.credType(typeID); err != nil {
					return err
				}
			case len(args) == 1:
				t = d.DefaultType()
			}

			outcome, err := a.model.Credentials(cmd.Context(), d, t, user)
			if err != nil {
				return err
			}
			if !outcome.Available() {
				return fmt.Errorf("%w: %q", errNotFound, user)
			}

			out := cmd.OutOrStdout()
			if outcome.Kind == models.OutcomeUsernameChanged {
				fmt.Fprintf(out, "username changed from %q to %q\n", outcome.PreviousUser, outcome.User)
			}
			fmt.Fprintf(out, "user: %s\n", outcome.User)
			printResult(out, outcome.Result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeID, "type", "t", "", "credential type (default: the domain default)")
	return cmd
}

func printResult(out io.Writer, result models.CredentialResult) {
	props := result.ToMap()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %s\n", k, props[k])
	}
}

func newDefaultCmd(a *app) *cobra.Command {
	var typeID string
	cmd := &cobra.Command{
		Use:   "default <domain> <user>",
		Short: "Make a user the domain default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.domain(args[0])
			if err != nil {
				return err
			}
			t, err := a.credType(typeID)
			if err != nil {
				return err
			}
			if err := a.model.SetDefaultCredential(d, t, args[1]); err != nil {
				return err
			}
			return a.save(cmd)
		},
	}
	cmd.Flags().StringVarP(&typeID, "type", "t", "", "credential type (default: the default type)")
	return cmd
}

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List credential types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, _ := a.model.DefaultCredentialType()
			for _, t := range a.model.CredentialTypes() {
				line := t.ID()
				if def != nil && def.ID() == t.ID() {
					line += " (default)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newUnlockCmd(a *app) *cobra.Command {
	var (
		remember bool
		forget   bool
	)
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Set the master password of the secure store",
		Long: `Set the master password of the secure store for this session.
With --remember it is also kept in the OS keychain; --forget deletes it there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if forget {
				return keychain.SetMasterPassword(keychain.Service, keychain.Account, "")
			}

			password, ok, err := a.console.ReadSecret("Master password: ")
			if err != nil {
				return err
			}
			password = strings.TrimSpace(password)
			if !ok || password == "" {
				return errCancelled
			}
			if a.stores != nil {
				if err := a.stores.Unlock(cmd.Context(), password); err != nil {
					return err
				}
			}
			if remember {
				return keychain.SetMasterPassword(keychain.Service, keychain.Account, password)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remember, "remember", false, "keep the password in the OS keychain")
	cmd.Flags().BoolVar(&forget, "forget", false, "delete the password from the OS keychain")
	cmd.MarkFlagsMutuallyExclusive("remember", "forget")
	return cmd
}
