package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

var ownerEmail string

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Manage owner accounts",
}

var ownerAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Create an owner account",
	Long: `Create an owner account directly in the store. The password is read
from the terminal.

Examples:
  clientpulse owner add ada --email ada@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runOwnerAdd,
}

func init() {
	ownerAddCmd.Flags().StringVar(&ownerEmail, "email", "", "Email address")
	_ = ownerAddCmd.MarkFlagRequired("email")
	ownerCmd.AddCommand(ownerAddCmd)
}

func runOwnerAdd(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Migrate(ctx); err != nil {
		return err
	}

	owner := &model.Owner{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(args[0]),
		Email:        strings.TrimSpace(ownerEmail),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.Store.Accounts().CreateOwner(ctx, owner); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("username or email already exists")
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), success.Render("✓")+" owner "+owner.Username+" created: "+owner.ID)
	return nil
}

// readPassword prompts twice on a terminal, or reads one line from a pipe
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
