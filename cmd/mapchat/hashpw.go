package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/mapchat/internal/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for auth.password_hash",
	Long: `Read a password from the first line of stdin and print its bcrypt hash.

Put the hash in auth.password_hash (or MAPCHAT_PASSWORD_HASH) and set
JWT_SECRET to require a token for the API; POST /api/token exchanges the
password for one.`,
	Example: `  printf 'correct horse' | mapchat hash-password`,
	Args:    cobra.NoArgs,
	RunE:    runHashPassword,
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return errors.New("no password on stdin")
	}
	password := strings.TrimRight(line, "\r\n")

	hash, err := auth.NewPasswordService().Hash(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
