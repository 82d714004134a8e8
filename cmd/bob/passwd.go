// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var passwdFlags struct {
	username string
	password string
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Print an htpasswd-format bcrypt line for a username and password",
	Long: `passwd hashes a password with bcrypt and prints one htpasswd-format
line ("user:$2a$..."), suitable for appending to a file referenced by an
auth_basic or auth_basic_session middleware's htpasswd_files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := passwdFlags.password
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = trimNewline(line)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		fmt.Printf("%s:%s\n", passwdFlags.username, hash)
		return nil
	},
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.Flags().StringVar(&passwdFlags.username, "username", "", "username for the htpasswd line")
	passwdCmd.Flags().StringVar(&passwdFlags.password, "password", "", "password to hash (prompted on stdin if omitted)")
	passwdCmd.MarkFlagRequired("username")
}
